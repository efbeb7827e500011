package session

import (
	"context"
	"testing"
	"time"

	"RSITrader/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ny, _ = time.LoadLocation("America/New_York")

func day(h, m int) time.Time { return time.Date(2024, 3, 5, h, m, 0, 0, ny) }

func openHours() model.MarketHours {
	return model.MarketHours{
		IsOpen:  true,
		Pre:     model.Window{Start: day(7, 0), End: day(9, 30)},
		Regular: model.Window{Start: day(9, 30), End: day(16, 0)},
		Post:    model.Window{Start: day(16, 0), End: day(20, 0)},
	}
}

func TestPhaseAt(t *testing.T) {
	h := openHours()
	tests := []struct {
		at   time.Time
		want Phase
	}{
		{day(6, 59), Closed},
		{day(7, 0), Pre},
		{day(9, 30), Regular},
		{day(12, 0), Regular},
		{day(16, 0), Regular},
		{day(16, 1), Post},
		{day(20, 0), Post},
		{day(20, 1), Closed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PhaseAt(h, tt.at), tt.at.Format(time.Kitchen))
	}

	h.IsOpen = false
	assert.Equal(t, Closed, PhaseAt(h, day(12, 0)))
}

func TestEligibilityTable(t *testing.T) {
	tests := []struct {
		kind        model.OrderKind
		regularOnly bool
		phase       Phase
		want        bool
	}{
		{model.KindConditional, false, Pre, false},
		{model.KindConditional, false, Regular, true},
		{model.KindConditional, false, Post, false},
		{model.KindSingle, false, Pre, true},
		{model.KindSingle, false, Post, true},
		{model.KindSingle, false, Closed, false},
		{model.KindSingle, true, Pre, false},
		{model.KindSingle, true, Regular, true},
		{model.KindSingle, true, Post, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AllowsOrder(tt.kind, tt.regularOnly, tt.phase), "%v regularOnly=%v %v", tt.kind, tt.regularOnly, tt.phase)
	}
	assert.True(t, AllowsSell(model.KindSingle, Pre))
	assert.True(t, AllowsSell(model.KindSingle, Post))
	assert.False(t, AllowsSell(model.KindSingle, Closed))
	assert.False(t, AllowsSell(model.KindConditional, Regular))

	assert.True(t, AllowsTick(false, Post))
	assert.False(t, AllowsTick(true, Post))
	assert.Equal(t, "NORMAL", OrderSession(model.KindSingle, true))
	assert.Equal(t, "NORMAL", OrderSession(model.KindConditional, false))
	assert.Equal(t, "SEAMLESS", OrderSession(model.KindSingle, false))
}

type fixedHours model.MarketHours

func (f fixedHours) MarketHours(context.Context, time.Time) (model.MarketHours, error) {
	return model.MarketHours(f), nil
}

func TestTracker(t *testing.T) {
	tr, err := NewTracker(context.Background(), fixedHours(openHours()), day(8, 0), ny)
	require.NoError(t, err)
	assert.Equal(t, Pre, tr.PhaseAt(day(8, 0).UTC()))
	assert.Equal(t, Regular, tr.PhaseAt(day(10, 0)))
}

func TestCalendarHours(t *testing.T) {
	c := NewCalendar("xnys")

	weekday := c.Hours(time.Date(2024, 3, 5, 12, 0, 0, 0, c.Location()))
	assert.True(t, weekday.IsOpen)
	assert.Equal(t, Regular, PhaseAt(weekday, time.Date(2024, 3, 5, 10, 0, 0, 0, c.Location())))

	saturday := c.Hours(time.Date(2024, 3, 9, 12, 0, 0, 0, c.Location()))
	assert.False(t, saturday.IsOpen)

	christmas := c.Hours(time.Date(2024, 12, 25, 12, 0, 0, 0, c.Location()))
	assert.False(t, christmas.IsOpen)
}
