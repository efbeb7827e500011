package orderbook

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"RSITrader/internal/clock"
	"RSITrader/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(symbol, period string, kind model.OrderKind, seq int) model.OrderRule {
	return model.OrderRule{
		Symbol:     symbol,
		Period:     period,
		Kind:       kind,
		Account:    "ira",
		Seq:        seq,
		BuyGap:     0.005,
		BuyRSI:     model.Thresholds{40, 35, 30, 30, 30, 30},
		BuyAdjust:  0.995,
		SellRSI:    model.Thresholds{60, 65, 70, 70, 70, 70},
		SellAdjust: 1.05,
		Notional:   2500,
	}
}

func TestColumnOffsets(t *testing.T) {
	assert.Equal(t, 0, ruleSegment.start)
	assert.Equal(t, 142, buySegment.start)
	assert.Equal(t, 205, sellSegment.start)

	line, err := Encode(&model.OrderState{OrderRule: rule("AAPL", "Weekly", model.KindSingle, 1)})
	require.NoError(t, err)
	assert.Equal(t, "AAPL ", line[0:5])
	assert.Equal(t, "Weekly         ", line[6:21])
	assert.Equal(t, "Single     ", line[22:33])
	assert.Equal(t, "  1", line[65:68])
	assert.Equal(t, "5.000", line[69:74])
	assert.Equal(t, " 40", line[75:78])
	assert.Equal(t, "0.995", line[99:104])
	assert.Equal(t, " 70", line[125:128])
	assert.Equal(t, "1.050", line[129:134])
	assert.Equal(t, "  2500", line[135:141])
	assert.Len(t, line, 141)
}

func TestRoundTrip(t *testing.T) {
	idle := &model.OrderState{OrderRule: rule("AAPL", "Weekly", model.KindSingle, 1)}

	bought := &model.OrderState{OrderRule: rule("MSFT", "Daily", model.KindConditional, 2)}
	bought.Buy = model.Leg{RSI: model.Thresholds{22, 25, 28, 29, 30, 31}, OrderID: 1234567890, Shares: 7, Price: decimal.RequireFromString("312.45"), Status: "WORKING"}

	full := &model.OrderState{OrderRule: rule("T", "Monthly", model.KindSingle, 3)}
	full.Buy = model.Leg{RSI: model.Thresholds{1, 2, 3, 4, 5, 6}, OrderID: 42, Shares: 150, Price: decimal.RequireFromString("16.10"), Status: model.StatusFilled}
	full.Sell = model.Leg{RSI: model.Thresholds{71, 72, 73, 74, 75, 76}, OrderID: 43, Shares: 150, Price: decimal.RequireFromString("17.02"), Status: model.StatusNewOrder}

	for _, want := range []*model.OrderState{idle, bought, full} {
		t.Run(want.Symbol, func(t *testing.T) {
			line, err := Encode(want)
			require.NoError(t, err)
			got, err := Decode(line)
			require.NoError(t, err)

			assert.InDelta(t, want.BuyGap, got.BuyGap, 1e-12)
			got.BuyGap = want.BuyGap
			assert.True(t, want.Buy.Price.Equal(got.Buy.Price))
			assert.True(t, want.Sell.Price.Equal(got.Sell.Price))
			got.Buy.Price, got.Sell.Price = want.Buy.Price, want.Sell.Price
			assert.Equal(t, want, got)
		})
	}
}

func TestEncodeRejectsOverflow(t *testing.T) {
	s := &model.OrderState{OrderRule: rule("GOOGLE", "Weekly", model.KindSingle, 1)}
	_, err := Encode(s)
	assert.Error(t, err)
}

func writeBook(t *testing.T, states ...*model.OrderState) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < HeaderLines; i++ {
		b.WriteString("# header line\n")
	}
	for _, s := range states {
		line, err := Encode(s)
		require.NoError(t, err)
		b.WriteString(line + "\n")
	}
	path := filepath.Join(t.TempDir(), "OrderStatus.txt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func state(symbol string, seq int) *model.OrderState {
	return &model.OrderState{OrderRule: rule(symbol, "Weekly", model.KindSingle, seq)}
}

func TestLoadValidates(t *testing.T) {
	clk := clock.NewFake(time.Now())

	_, err := Load(writeBook(t, state("AAPL", 1), state("AAPL", 1)), "", clk, 0)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = Load(writeBook(t, state("AAPL", 1), state("AAPL", 3)), "", clk, 0)
	assert.ErrorIs(t, err, ErrSequenceGap)

	_, err = Load(writeBook(t, state("AAPL", 2)), "", clk, 0)
	assert.ErrorIs(t, err, ErrSequenceGap)

	b, err := Load(writeBook(t, state("MSFT", 1), state("AAPL", 2), state("AAPL", 1)), "", clk, 0)
	require.NoError(t, err)
	require.Len(t, b.States(), 3)
	assert.Equal(t, "AAPL", b.States()[0].Symbol)
	assert.Equal(t, 1, b.States()[0].Seq)
	assert.Equal(t, []string{"AAPL", "MSFT"}, b.Symbols())
}

func TestPriorBuyPrice(t *testing.T) {
	s1, s2, s3, s4 := state("AAPL", 1), state("AAPL", 2), state("AAPL", 3), state("AAPL", 4)
	s1.Buy = model.Leg{OrderID: 1, Shares: 1, Price: decimal.RequireFromString("100.00"), Status: model.StatusFilled}
	s2.Buy = model.Leg{OrderID: 2, Shares: 1, Price: decimal.RequireFromString("95.00"), Status: "WORKING"}

	b, err := Load(writeBook(t, s1, s2, s3, s4), "", clock.NewFake(time.Now()), 0)
	require.NoError(t, err)

	assert.True(t, b.PriorBuyPrice(0).IsZero())
	assert.Equal(t, "100", b.PriorBuyPrice(1).String())
	assert.Equal(t, "95", b.PriorBuyPrice(2).String())
	// slot 3 is idle, so slot 4 reaches back to slot 2
	assert.Equal(t, "95", b.PriorBuyPrice(3).String())

	assert.Equal(t, map[int64]bool{1: true, 2: true}, b.ClaimedIDs())
}

func TestSavePreservesHeaderAndRecords(t *testing.T) {
	s1 := state("AAPL", 1)
	path := writeBook(t, s1)
	clk := clock.NewFake(time.Now())
	b, err := Load(path, "", clk, 2*time.Second)
	require.NoError(t, err)

	b.States()[0].Buy = model.Leg{OrderID: 9, Shares: 3, Price: decimal.RequireFromString("10.00"), Status: model.StatusNewOrder}
	require.NoError(t, b.Save(context.Background()))
	assert.Equal(t, 2*time.Second, clk.Slept())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, HeaderLines+1)
	assert.Equal(t, "# header line", lines[0])

	again, err := Load(path, "", clk, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(9), again.States()[0].Buy.OrderID)

	tmpl := filepath.Join(t.TempDir(), "OrderStatusHeader.txt")
	require.NoError(t, os.WriteFile(tmpl, []byte("fresh header\n"), 0644))
	withTmpl, err := Load(path, tmpl, clk, 0)
	require.NoError(t, err)
	require.NoError(t, withTmpl.Save(context.Background()))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "fresh header\n\n"))
}
