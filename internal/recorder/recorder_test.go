package recorder

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"RSITrader/internal/model"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestSQLiteRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.db")
	r, err := NewSQLiteRecorder(path, quietLog())
	require.NoError(t, err)
	defer r.Close()

	at := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	require.NoError(t, r.RecordCycle(&Cycle{
		RunID: "run-1", At: at,
		Indicators: model.MarketIndicators{Symbol: "SPY", RSI: model.RSISet{31, 32, 33, 34, 35, 36}, LastPrice: 512.25},
	}))
	require.NoError(t, r.RecordOrderEvent(&OrderEvent{
		RunID: "run-1", At: at, Key: "SPY/Weekly/Single#1", Side: model.SideBuy, Event: "placed",
		OrderID: 1000000001, Shares: 2, Price: decimal.RequireFromString("507.12"), Status: "WORKING",
	}))

	var symbol string
	var rsi15, last float64
	require.NoError(t, r.db.QueryRow(`SELECT symbol, rsi_15min, last_price FROM cycles WHERE run_id = ?`, "run-1").Scan(&symbol, &rsi15, &last))
	assert.Equal(t, "SPY", symbol)
	assert.Equal(t, 36.0, rsi15)
	assert.Equal(t, 512.25, last)

	var side, price, status string
	var id int64
	require.NoError(t, r.db.QueryRow(`SELECT side, price, status, order_id FROM order_events WHERE order_key = ?`, "SPY/Weekly/Single#1").Scan(&side, &price, &status, &id))
	assert.Equal(t, "BUY", side)
	assert.Equal(t, "507.12", price)
	assert.Equal(t, "WORKING", status)
	assert.Equal(t, int64(1000000001), id)
}

func TestSQLiteRecorderReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.db")
	r, err := NewSQLiteRecorder(path, quietLog())
	require.NoError(t, err)
	require.NoError(t, r.RecordCycle(&Cycle{RunID: "a", At: time.Now(), Indicators: model.MarketIndicators{Symbol: "QQQ"}}))
	require.NoError(t, r.Close())

	r, err = NewSQLiteRecorder(path, quietLog())
	require.NoError(t, err)
	defer r.Close()
	var n int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM cycles`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordCycle(&Cycle{}))
	assert.NoError(t, r.RecordOrderEvent(&OrderEvent{}))
	assert.NoError(t, r.Close())
}
