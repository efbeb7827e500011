package broker

import (
	"context"
	"time"

	"RSITrader/internal/model"

	"github.com/shopspring/decimal"
)

// Order field values used by the brokerage order schema.
const (
	StrategySingle  = "SINGLE"
	StrategyTrigger = "TRIGGER"
	OrderTypeLimit  = "LIMIT"
	DurationGTC     = "GOOD_TILL_CANCEL"
	SessionNormal   = "NORMAL"
	SessionSeamless = "SEAMLESS"
	AssetEquity     = "EQUITY"

	StatusWorking        = "WORKING"
	StatusCanceled       = "CANCELED"
	StatusAwaitingParent = "AWAITING_PARENT_ORDER"
)

// Candle is one historical bar; only the close is used.
type Candle struct {
	Datetime int64   `json:"datetime"`
	Close    float64 `json:"close"`
}

// Instrument identifies the traded security of a leg.
type Instrument struct {
	Symbol    string `json:"symbol"`
	AssetType string `json:"assetType"`
}

// OrderLeg is one instruction within an order.
type OrderLeg struct {
	Instruction string     `json:"instruction"`
	Quantity    float64    `json:"quantity"`
	Instrument  Instrument `json:"instrument"`
}

// Order mirrors the brokerage order document, used both to submit and to read back.
type Order struct {
	OrderID           int64           `json:"orderId,omitempty"`
	AccountID         int64           `json:"accountId,omitempty"`
	Status            string          `json:"status,omitempty"`
	Session           string          `json:"session"`
	Duration          string          `json:"duration"`
	OrderType         string          `json:"orderType"`
	Quantity          float64         `json:"quantity,omitempty"`
	Price             decimal.Decimal `json:"price"`
	OrderStrategyType string          `json:"orderStrategyType"`
	Legs              []OrderLeg      `json:"orderLegCollection"`
	Children          []Order         `json:"childOrderStrategies,omitempty"`
}

// Symbol returns the first leg's symbol, or "" when the order has no legs.
func (o Order) Symbol() string {
	if len(o.Legs) == 0 {
		return ""
	}
	return o.Legs[0].Instrument.Symbol
}

// Instruction returns the first leg's instruction.
func (o Order) Instruction() string {
	if len(o.Legs) == 0 {
		return ""
	}
	return o.Legs[0].Instruction
}

// NewLimitOrder builds a single good-till-cancel limit order.
func NewLimitOrder(symbol string, side model.Side, shares int, price decimal.Decimal, session string) Order {
	return Order{
		Session:           session,
		Duration:          DurationGTC,
		OrderType:         OrderTypeLimit,
		Price:             price,
		OrderStrategyType: StrategySingle,
		Legs: []OrderLeg{{
			Instruction: side.String(),
			Quantity:    float64(shares),
			Instrument:  Instrument{Symbol: symbol, AssetType: AssetEquity},
		}},
	}
}

// NewBracketOrder builds a buy limit order that triggers a sell limit on fill.
func NewBracketOrder(symbol string, buyShares int, buyPrice decimal.Decimal, sellShares int, sellPrice decimal.Decimal) Order {
	o := NewLimitOrder(symbol, model.SideBuy, buyShares, buyPrice, SessionNormal)
	o.OrderStrategyType = StrategyTrigger
	o.Children = []Order{NewLimitOrder(symbol, model.SideSell, sellShares, sellPrice, SessionNormal)}
	return o
}

// API is the brokerage contract. Every method performs a single attempt.
type API interface {
	History(ctx context.Context, symbol string, res model.Resolution, start, end time.Time) ([]Candle, error)
	Quote(ctx context.Context, symbol string) (float64, error)
	MarketHours(ctx context.Context, date time.Time) (model.MarketHours, error)
	PlaceOrder(ctx context.Context, account string, o Order) error
	ListOrders(ctx context.Context, account string, from, to time.Time) ([]Order, error)
	GetOrder(ctx context.Context, account string, id int64) (Order, error)
}
