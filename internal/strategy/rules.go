// Package strategy holds the order eligibility rules, the order lifecycle
// engine and the signal aggregator.
package strategy

import (
	"math"

	"RSITrader/internal/model"

	"github.com/shopspring/decimal"
)

var (
	sellFloor  = decimal.RequireFromString("1.01")
	sellMarkup = decimal.RequireFromString("1.001")
)

// BuyTriggered reports whether every horizon's RSI is strictly below its threshold.
func BuyTriggered(th model.Thresholds, rsi model.RSISet) bool {
	for i := range th {
		if !(rsi[i] < float64(th[i])) {
			return false
		}
	}
	return true
}

// SellTriggered reports whether every horizon's RSI is strictly above its threshold.
func SellTriggered(th model.Thresholds, rsi model.RSISet) bool {
	for i := range th {
		if !(rsi[i] > float64(th[i])) {
			return false
		}
	}
	return true
}

// GapOpen reports whether last has dropped at least gap below the chain's
// prior buy price. A zero prior always opens the gate.
func GapOpen(prior decimal.Decimal, gap, last float64) bool {
	if prior.Sign() <= 0 {
		return true
	}
	limit := prior.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(gap)))
	return decimal.NewFromFloat(last).LessThanOrEqual(limit)
}

// Shares converts a notional amount to a whole share count, at least one.
func Shares(notional, last float64) int {
	n := int(math.RoundToEven(notional / last))
	if n < 1 {
		return 1
	}
	return n
}

// BuyPrice is adjust*last truncated to cents.
func BuyPrice(adjust, last float64) decimal.Decimal {
	return decimal.NewFromFloat(adjust).Mul(decimal.NewFromFloat(last)).Truncate(2)
}

// BracketSellPrice is the sell limit bound to a conditional buy.
func BracketSellPrice(buy decimal.Decimal, adjust float64) decimal.Decimal {
	return buy.Mul(decimal.NewFromFloat(adjust)).Round(2)
}

// SellPrice is the limit for a single sell placed at last.
func SellPrice(last float64) decimal.Decimal {
	return sellMarkup.Mul(decimal.NewFromFloat(last)).Round(2)
}

// SellPriceOK requires last to be at least 1% above the fill and above adjust*fill.
func SellPriceOK(fill decimal.Decimal, adjust, last float64) bool {
	l := decimal.NewFromFloat(last)
	return l.GreaterThanOrEqual(fill.Mul(sellFloor)) && l.GreaterThan(fill.Mul(decimal.NewFromFloat(adjust)))
}
