package history

import (
	"context"
	"testing"
	"time"

	"RSITrader/internal/broker"
	"RSITrader/internal/clock"
	"RSITrader/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ny, _ = time.LoadLocation("America/New_York")

func pt(ts int64, price float64, res model.Resolution) model.PricePoint {
	return model.PricePoint{Timestamp: ts, Price: price, Resolution: res}
}

func resolutions(pts []model.PricePoint) []model.Resolution {
	out := make([]model.Resolution, len(pts))
	for i, p := range pts {
		out[i] = p.Resolution
	}
	return out
}

func TestCleanBasics(t *testing.T) {
	in := []model.PricePoint{
		pt(100, 10, model.ResMinute),
		pt(300, 12, model.ResMinute),
		pt(200, 0, model.ResMinute),
		pt(300, 12, model.ResMinute),
		pt(200, 11, model.ResMinute),
		pt(400, -1, model.ResTick),
	}
	got := Clean(in)
	assert.Equal(t, []model.PricePoint{
		pt(300, 12, model.ResMinute),
		pt(200, 11, model.ResMinute),
		pt(100, 10, model.ResMinute),
	}, got)
}

func TestCleanCoherence(t *testing.T) {
	tests := []struct {
		name string
		res  []model.Resolution // newest first
		want []model.Resolution
	}{
		{"single coarse point between minutes", []model.Resolution{1, 1, 15, 1, 1}, []model.Resolution{1, 1, 1, 1}},
		{"two coarse points between minutes", []model.Resolution{1, 15, 15, 1}, []model.Resolution{1, 1}},
		{"three coarse points between minutes", []model.Resolution{1, 1440, 1440, 1440, 1}, []model.Resolution{1, 1}},
		{"minute exempt", []model.Resolution{15, 15, 15, 1, 15}, []model.Resolution{15, 15, 15, 1, 15}},
		{"tick exempt", []model.Resolution{15, 0, 15}, []model.Resolution{15, 0, 15}},
		{"clean boundary kept", []model.Resolution{1, 1, 1, 15, 15, 15, 1440, 1440}, []model.Resolution{1, 1, 1, 15, 15, 15, 1440, 1440}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in []model.PricePoint
			for i, r := range tt.res {
				in = append(in, pt(int64(1000-i), 10+float64(i), r))
			}
			assert.Equal(t, tt.want, resolutions(Clean(in)))
		})
	}
}

func TestCleanInvariants(t *testing.T) {
	var in []model.PricePoint
	for i := 0; i < 200; i++ {
		r := []model.Resolution{0, 1, 15, 1440}[i%4]
		in = append(in, pt(int64(i%37)*1000, float64(i%5), r))
	}
	got := Clean(in)
	seen := map[model.PricePoint]bool{}
	for i, p := range got {
		assert.Greater(t, p.Price, 0.0)
		assert.False(t, seen[p], "duplicate %v", p)
		seen[p] = true
		if i > 0 {
			assert.LessOrEqual(t, p.Timestamp, got[i-1].Timestamp)
		}
	}
}

func TestFromCandlesNormalizesToClose(t *testing.T) {
	c := []broker.Candle{{Datetime: 0, Close: 5}}
	assert.Equal(t, int64(15*time.Hour/time.Millisecond), FromCandles(c, model.ResDaily)[0].Timestamp)
	assert.Equal(t, int64(14*time.Minute/time.Millisecond), FromCandles(c, model.ResFifteenMinute)[0].Timestamp)
	assert.Equal(t, int64(50*time.Second/time.Millisecond), FromCandles(c, model.ResMinute)[0].Timestamp)
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir(), clock.NewFake(time.Now()), time.Second)
	pts := []model.PricePoint{pt(1700000000000, 187.123456, model.ResTick), pt(1699999000000, 186.5, model.ResDaily)}

	got, mod, err := s.Load("AAPL")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, mod.IsZero())

	require.NoError(t, s.Save(context.Background(), "AAPL", pts))
	got, mod, err = s.Load("AAPL")
	require.NoError(t, err)
	assert.Equal(t, pts, got)
	assert.False(t, mod.IsZero())
	assert.Len(t, FormatPoint(pts[0]), 42)
}

func TestSampleDaily(t *testing.T) {
	day := int64(24 * time.Hour / time.Millisecond)
	mark := time.UnixMilli(10 * day)
	var pts []model.PricePoint
	for i := 10; i >= 0; i-- {
		pts = append(pts, pt(int64(i)*day, float64(i), model.ResDaily))
		pts = append(pts, pt(int64(i)*day-day/2, 1000+float64(i), model.ResFifteenMinute))
	}
	got := Sample(pts, model.HorizonDay, mark, ny)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
}

func TestStepBackIntraday(t *testing.T) {
	at := func(d, h, m int) time.Time { return time.Date(2024, 3, d, h, m, 0, 0, ny) }

	// Monday 08:00 minus 4h lands before the session start: resume from
	// Sunday 19:00 less the remaining 2h, then skip back to Friday.
	got := time.UnixMilli(stepBack(at(4, 8, 0).UnixMilli(), model.HorizonFourHour, ny)).In(ny)
	assert.WithinDuration(t, at(1, 17, 0), got, 0)

	// Tuesday 12:00 minus 1h stays in session.
	got = time.UnixMilli(stepBack(at(5, 12, 0).UnixMilli(), model.HorizonOneHour, ny)).In(ny)
	assert.WithinDuration(t, at(5, 11, 0), got, 0)

	// Tuesday 06:10 minus 15m resumes at Monday 18:55.
	got = time.UnixMilli(stepBack(at(5, 6, 10).UnixMilli(), model.HorizonFifteenMinute, ny)).In(ny)
	assert.WithinDuration(t, at(4, 18, 55), got, 0)

	// Weekly steps are plain seven-day subtraction.
	assert.Equal(t, at(4, 8, 0).AddDate(0, 0, -7).UnixMilli(), stepBack(at(4, 8, 0).UnixMilli(), model.HorizonWeek, ny))
}
