package recorder

import (
	"time"

	"RSITrader/internal/model"

	"github.com/shopspring/decimal"
)

// Cycle is one symbol's indicator reading in a trading loop pass.
type Cycle struct {
	RunID      string
	At         time.Time
	Indicators model.MarketIndicators
}

// OrderEvent is one lifecycle change of an order slot.
type OrderEvent struct {
	RunID   string
	At      time.Time
	Key     string // rule key, e.g. "SPY/Weekly/Single#1"
	Side    model.Side
	Event   string // "placed", "status" or "reset"
	OrderID int64
	Shares  int
	Price   decimal.Decimal
	Status  string
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordCycle(c *Cycle) error
	RecordOrderEvent(evt *OrderEvent) error
	Close() error
}
