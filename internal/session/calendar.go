package session

import (
	"time"

	"RSITrader/internal/model"

	"github.com/scmhub/calendar"
)

// Fallback session boundaries in exchange time, as minutes after midnight.
const (
	preOpen      = 7 * 60
	regularOpen  = 9*60 + 30
	regularClose = 16 * 60
	postClose    = 20 * 60
)

// Calendar produces market hours from an exchange holiday calendar when the
// broker cannot supply them.
type Calendar struct {
	cal *calendar.Calendar
	loc *time.Location
}

// NewCalendar loads the calendar for mic, defaulting to xnys.
func NewCalendar(mic string) *Calendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}
	c := &Calendar{cal: cal}
	if cal != nil {
		c.loc = cal.Loc
	}
	if c.loc == nil {
		c.loc, _ = time.LoadLocation("America/New_York")
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	return c
}

// Location is the exchange time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// IsTradingDay reports whether date is an exchange business day.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	date = date.In(c.loc)
	if c.cal == nil {
		return date.Weekday() != time.Saturday && date.Weekday() != time.Sunday
	}
	return c.cal.IsBusinessDay(date)
}

// Hours returns the fixed pre/regular/post schedule for date, or a closed day.
func (c *Calendar) Hours(date time.Time) model.MarketHours {
	date = date.In(c.loc)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, c.loc)
	h := model.MarketHours{Date: day}
	if !c.IsTradingDay(day) {
		return h
	}
	at := func(min int) time.Time { return day.Add(time.Duration(min) * time.Minute) }
	h.IsOpen = true
	h.Pre = model.Window{Start: at(preOpen), End: at(regularOpen)}
	h.Regular = model.Window{Start: at(regularOpen), End: at(regularClose)}
	h.Post = model.Window{Start: at(regularClose), End: at(postClose)}
	return h
}
