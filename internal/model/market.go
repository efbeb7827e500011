package model

import "fmt"

// Resolution tags the sampling interval a PricePoint came from, in minutes.
type Resolution int

const (
	ResTick          Resolution = 0
	ResMinute        Resolution = 1
	ResFifteenMinute Resolution = 15
	ResDaily         Resolution = 1440
)

func (r Resolution) String() string {
	switch r {
	case ResTick:
		return "tick"
	case ResMinute:
		return "1min"
	case ResFifteenMinute:
		return "15min"
	case ResDaily:
		return "daily"
	default:
		return fmt.Sprintf("res(%d)", int(r))
	}
}

// PricePoint is one observation in a symbol's price series.
type PricePoint struct {
	Timestamp  int64 // epoch millis, normalized to candle close
	Price      float64
	Resolution Resolution
}
