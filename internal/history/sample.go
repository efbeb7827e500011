package history

import (
	"time"

	"RSITrader/internal/model"
)

// Intraday sessions are treated as running 06:00 to 19:00 local time.
const (
	sessionStartHour = 6
	deadZone         = 11 * time.Hour
)

// Sample selects one price per horizon step from a newest-first series,
// starting at mark, and returns them oldest first.
func Sample(pts []model.PricePoint, h model.Horizon, mark time.Time, loc *time.Location) []float64 {
	next := mark.UnixMilli()
	var out []float64
	for _, p := range pts {
		if p.Timestamp > next {
			continue
		}
		out = append(out, p.Price)
		next = stepBack(p.Timestamp, h, loc)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// stepBack returns the next mark one horizon before ts. Intraday steps that
// would land before the session start resume from 19:00 of the previous day
// and then skip weekends.
func stepBack(ts int64, h model.Horizon, loc *time.Location) int64 {
	delta := h.Duration()
	if !h.Intraday() {
		return ts - delta.Milliseconds()
	}
	t := time.UnixMilli(ts).In(loc)
	open := time.Date(t.Year(), t.Month(), t.Day(), sessionStartHour, 0, 0, 0, loc)
	var next time.Time
	if since := t.Sub(open); since < delta {
		next = open.Add(-deadZone).Add(-(delta - since))
	} else {
		next = t.Add(-delta)
	}
	switch next.Weekday() {
	case time.Sunday:
		next = next.AddDate(0, 0, -2)
	case time.Saturday:
		next = next.AddDate(0, 0, -1)
	}
	return next.UnixMilli()
}
