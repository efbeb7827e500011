package model

import (
	"fmt"
	"math"
	"time"
)

// Horizon is one of the six sampling periods RSI is computed at.
type Horizon int

const (
	HorizonWeek Horizon = iota
	HorizonDay
	HorizonFourHour
	HorizonOneHour
	HorizonThirtyMinute
	HorizonFifteenMinute
)

// HorizonCount is the number of horizons carried by every threshold and snapshot set.
const HorizonCount = 6

// Horizons lists every horizon in storage order.
var Horizons = [HorizonCount]Horizon{
	HorizonWeek, HorizonDay, HorizonFourHour, HorizonOneHour, HorizonThirtyMinute, HorizonFifteenMinute,
}

// Duration is the step between samples for the horizon.
func (h Horizon) Duration() time.Duration {
	switch h {
	case HorizonWeek:
		return 7 * 24 * time.Hour
	case HorizonDay:
		return 24 * time.Hour
	case HorizonFourHour:
		return 4 * time.Hour
	case HorizonOneHour:
		return time.Hour
	case HorizonThirtyMinute:
		return 30 * time.Minute
	case HorizonFifteenMinute:
		return 15 * time.Minute
	}
	panic(fmt.Sprintf("unknown horizon %d", int(h)))
}

// Intraday reports whether sampling must skip non-trading hours.
func (h Horizon) Intraday() bool { return h >= HorizonFourHour }

func (h Horizon) String() string {
	switch h {
	case HorizonWeek:
		return "week"
	case HorizonDay:
		return "day"
	case HorizonFourHour:
		return "4hr"
	case HorizonOneHour:
		return "1hr"
	case HorizonThirtyMinute:
		return "30min"
	case HorizonFifteenMinute:
		return "15min"
	}
	return fmt.Sprintf("horizon(%d)", int(h))
}

// RSISet holds one RSI value per horizon.
type RSISet [HorizonCount]float64

// Rounded converts the set to the integer form stored on order legs,
// rounding halves to even.
func (s RSISet) Rounded() Thresholds {
	var out Thresholds
	for i, v := range s {
		out[i] = int(math.RoundToEven(v))
	}
	return out
}

// Thresholds holds one integer RSI level per horizon.
type Thresholds [HorizonCount]int

// MarketIndicators is the per-cycle view of a symbol's snapshot.
type MarketIndicators struct {
	Symbol     string
	RSI        RSISet
	LastPrice  float64
	LastUpdate time.Time
}
