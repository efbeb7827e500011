// Package session derives trading-session phases from the day's market hours
// and decides which phases allow ticks and orders.
package session

import (
	"context"
	"fmt"
	"time"

	"RSITrader/internal/model"
)

// Phase is the trading-session phase at an instant.
type Phase int

const (
	Closed Phase = iota
	Pre
	Regular
	Post
)

func (p Phase) String() string {
	switch p {
	case Pre:
		return "pre-market"
	case Regular:
		return "regular"
	case Post:
		return "post-market"
	}
	return "closed"
}

// PhaseAt classifies t against h. The regular session wins at shared boundaries.
func PhaseAt(h model.MarketHours, t time.Time) Phase {
	if !h.IsOpen {
		return Closed
	}
	switch {
	case h.Regular.Contains(t):
		return Regular
	case h.Pre.Contains(t):
		return Pre
	case h.Post.Contains(t):
		return Post
	}
	return Closed
}

// extended reports whether p is any tradable phase.
func extended(p Phase) bool { return p == Pre || p == Regular || p == Post }

// AllowsTick reports whether a live last-price tick may be recorded.
func AllowsTick(regularOnly bool, p Phase) bool {
	if regularOnly {
		return p == Regular
	}
	return extended(p)
}

// AllowsOrder reports whether an order of kind may be placed for a symbol of the given restriction class.
func AllowsOrder(kind model.OrderKind, regularOnly bool, p Phase) bool {
	switch kind {
	case model.KindConditional:
		return p == Regular
	case model.KindSingle:
		return AllowsTick(regularOnly, p)
	}
	panic(fmt.Sprintf("unhandled order kind %v", kind))
}

// AllowsSell reports whether a standalone sell may be placed. Only single
// orders place one, and any tradable phase qualifies whatever the symbol's
// restriction class.
func AllowsSell(kind model.OrderKind, p Phase) bool {
	return kind == model.KindSingle && extended(p)
}

// OrderSession is the broker session value for an order.
func OrderSession(kind model.OrderKind, regularOnly bool) string {
	if kind == model.KindConditional || regularOnly {
		return "NORMAL"
	}
	return "SEAMLESS"
}

// HoursSource fetches market hours for a date.
type HoursSource interface {
	MarketHours(ctx context.Context, date time.Time) (model.MarketHours, error)
}

// Tracker holds the day's schedule and answers phase queries for the run.
type Tracker struct {
	hours model.MarketHours
	loc   *time.Location
}

// NewTracker fetches hours for the exchange date of now.
func NewTracker(ctx context.Context, src HoursSource, now time.Time, loc *time.Location) (*Tracker, error) {
	h, err := src.MarketHours(ctx, now.In(loc))
	if err != nil {
		return nil, fmt.Errorf("market hours: %w", err)
	}
	return &Tracker{hours: h, loc: loc}, nil
}

// NewStaticTracker wraps already known hours.
func NewStaticTracker(h model.MarketHours, loc *time.Location) *Tracker {
	return &Tracker{hours: h, loc: loc}
}

// Hours returns the schedule in use.
func (t *Tracker) Hours() model.MarketHours { return t.hours }

// Location is the exchange time zone.
func (t *Tracker) Location() *time.Location { return t.loc }

// PhaseAt classifies now against the tracked schedule.
func (t *Tracker) PhaseAt(now time.Time) Phase { return PhaseAt(t.hours, now.In(t.loc)) }
