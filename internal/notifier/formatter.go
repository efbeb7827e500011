package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"RSITrader/internal/model"
)

// FormatIndicators renders the per-symbol RSI table.
func FormatIndicators(inds []model.MarketIndicators) string {
	var b strings.Builder
	b.WriteString("Symb      Wk   Day   4hr   1hr   30m   15m     Last\n")
	for _, ind := range inds {
		fmt.Fprintf(&b, "%-6.6s", ind.Symbol)
		for _, h := range model.Horizons {
			fmt.Fprintf(&b, " %5.2f", ind.RSI[h])
		}
		fmt.Fprintf(&b, " %8.2f\n", ind.LastPrice)
	}
	return b.String()
}

func flag(on bool) string {
	if on {
		return "YES"
	}
	return "-"
}

// FormatAggregates renders the buy/sell eligibility table.
func FormatAggregates(aggs []model.SignalAggregate) string {
	var b strings.Builder
	b.WriteString("Symb   Period          Buy  Sell  Buy%  Sell%\n")
	for _, a := range aggs {
		fmt.Fprintf(&b, "%-6.6s %-15.15s %-4s %-4s %5.0f %6.0f\n", a.Symbol, a.Period, flag(a.BuyNow), flag(a.SellNow), a.BuyPct, a.SellPct)
	}
	return b.String()
}

// FormatStatus combines both tables into one message.
func FormatStatus(at time.Time, inds []model.MarketIndicators, aggs []model.SignalAggregate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>RSITrader</b> | %s\n", at.Format("2006-01-02 15:04:05"))
	b.WriteString("<pre>")
	b.WriteString(html.EscapeString(FormatIndicators(inds)))
	b.WriteString("\n")
	b.WriteString(html.EscapeString(FormatAggregates(aggs)))
	b.WriteString("</pre>")
	return b.String()
}

// FormatOrderEvent describes one lifecycle change of an order slot.
func FormatOrderEvent(event string, s model.OrderState, side model.Side) string {
	leg := s.Leg(side)
	switch event {
	case "placed":
		return fmt.Sprintf("🟢 <b>%s placed</b> %s\n%d @ %s (id %d, %s)",
			side, html.EscapeString(s.OrderRule.String()), leg.Shares, leg.Price.StringFixed(2), leg.OrderID, leg.Status)
	case "reset":
		return fmt.Sprintf("✅ <b>cycle complete</b> %s\nbought %d @ %s, sold @ %s",
			html.EscapeString(s.OrderRule.String()), s.Buy.Shares, s.Buy.Price.StringFixed(2), s.Sell.Price.StringFixed(2))
	default:
		return fmt.Sprintf("🔄 <b>%s %s</b> %s\n%d @ %s (id %d)",
			side, strings.ToLower(leg.Status), html.EscapeString(s.OrderRule.String()), leg.Shares, leg.Price.StringFixed(2), leg.OrderID)
	}
}

// FormatAbort reports a fatal stop of the trading loop.
func FormatAbort(err error) string {
	return fmt.Sprintf("❌ <b>RSITrader stopped</b>\n%s", html.EscapeString(err.Error()))
}
