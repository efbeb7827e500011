package model

import "time"

// Window is an inclusive trading-session interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the window, endpoints included.
func (w Window) Contains(t time.Time) bool {
	if w.Start.IsZero() && w.End.IsZero() {
		return false
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// MarketHours is the broker's session schedule for one trading date.
type MarketHours struct {
	Date    time.Time
	IsOpen  bool
	Pre     Window
	Regular Window
	Post    Window
}
