package model

// SignalAggregate is the per (symbol, period) eligibility view shown on the status line.
type SignalAggregate struct {
	Symbol  string
	Period  string
	BuyNow  bool
	SellNow bool
	BuyPct  float64 // share of the symbol's groups currently buy-eligible
	SellPct float64
	BuyAt   Thresholds
	SellAt  Thresholds
}
