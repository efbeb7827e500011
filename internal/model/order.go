package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderKind distinguishes one-sided orders from bracket orders.
type OrderKind int

const (
	KindSingle OrderKind = iota
	KindConditional
)

func (k OrderKind) String() string {
	switch k {
	case KindSingle:
		return "Single"
	case KindConditional:
		return "Conditional"
	}
	return fmt.Sprintf("OrderKind(%d)", int(k))
}

// ParseOrderKind maps the stored label back to an OrderKind.
func ParseOrderKind(s string) (OrderKind, error) {
	switch s {
	case "Single":
		return KindSingle, nil
	case "Conditional":
		return KindConditional, nil
	}
	return 0, fmt.Errorf("unknown order kind %q", s)
}

// Side is the direction of an order leg.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// Leg statuses set locally; every other value is copied from the broker.
const (
	StatusNone     = ""
	StatusNewOrder = "New_Order"
	StatusFilled   = "FILLED"
	StatusCanceled = "CANCELED"
)

// OrderRule is the immutable configuration of one chain slot.
type OrderRule struct {
	Symbol     string
	Period     string
	Kind       OrderKind
	Account    string // alias resolved through the account table
	Seq        int
	BuyGap     float64 // fraction below the prior buy price required to re-enter
	BuyRSI     Thresholds
	BuyAdjust  float64
	SellRSI    Thresholds
	SellAdjust float64
	Notional   float64
}

// ChainKey identifies the chain a rule belongs to.
type ChainKey struct {
	Symbol string
	Period string
	Kind   OrderKind
}

func (r OrderRule) Chain() ChainKey {
	return ChainKey{Symbol: r.Symbol, Period: r.Period, Kind: r.Kind}
}

func (r OrderRule) String() string {
	return fmt.Sprintf("%s/%s/%s#%d", r.Symbol, r.Period, r.Kind, r.Seq)
}

// Leg is the mutable state of one side of an order slot.
type Leg struct {
	RSI     Thresholds
	OrderID int64
	Shares  int
	Price   decimal.Decimal
	Status  string
}

// Placed reports whether the leg has been submitted.
func (l Leg) Placed() bool { return l.Status != StatusNone }

// Filled reports whether the broker has confirmed the fill.
func (l Leg) Filled() bool { return l.Status == StatusFilled }

// Phase is the lifecycle position of an order slot.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBuyPlaced
	PhaseBuyFilled
	PhaseSellPlaced
	PhaseCycleComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseBuyPlaced:
		return "BuyPlaced"
	case PhaseBuyFilled:
		return "BuyFilled"
	case PhaseSellPlaced:
		return "SellPlaced"
	case PhaseCycleComplete:
		return "CycleComplete"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// OrderState is a rule plus its buy and sell legs.
type OrderState struct {
	OrderRule
	Buy  Leg
	Sell Leg
}

// Phase derives the lifecycle phase from the leg statuses.
func (s *OrderState) Phase() Phase {
	switch {
	case !s.Buy.Placed():
		return PhaseIdle
	case !s.Buy.Filled():
		return PhaseBuyPlaced
	case !s.Sell.Placed():
		return PhaseBuyFilled
	case !s.Sell.Filled():
		return PhaseSellPlaced
	default:
		return PhaseCycleComplete
	}
}

// Leg returns a pointer to the leg for side.
func (s *OrderState) Leg(side Side) *Leg {
	if side == SideSell {
		return &s.Sell
	}
	return &s.Buy
}

// Reset blanks both legs so the slot can enter again.
func (s *OrderState) Reset() {
	s.Buy = Leg{}
	s.Sell = Leg{}
}
