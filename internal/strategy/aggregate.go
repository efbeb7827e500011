package strategy

import "RSITrader/internal/model"

// Aggregate builds one SignalAggregate per (symbol, period) group of single
// slots in book order. Conditional slots are not reported. Thresholds come
// from the group's first slot; percentages count eligible groups among all
// groups of the same symbol.
func Aggregate(states []*model.OrderState, ind map[string]model.MarketIndicators) []model.SignalAggregate {
	type key struct{ symbol, period string }
	var out []model.SignalAggregate
	seen := map[key]bool{}
	for _, s := range states {
		if s.Kind != model.KindSingle {
			continue
		}
		k := key{s.Symbol, s.Period}
		if seen[k] {
			continue
		}
		seen[k] = true
		agg := model.SignalAggregate{Symbol: s.Symbol, Period: s.Period, BuyAt: s.BuyRSI, SellAt: s.SellRSI}
		if snap, ok := ind[s.Symbol]; ok {
			agg.BuyNow = BuyTriggered(s.BuyRSI, snap.RSI)
			agg.SellNow = SellTriggered(s.SellRSI, snap.RSI)
		}
		out = append(out, agg)
	}

	type tally struct{ total, buy, sell int }
	counts := map[string]*tally{}
	for _, a := range out {
		c := counts[a.Symbol]
		if c == nil {
			c = &tally{}
			counts[a.Symbol] = c
		}
		c.total++
		if a.BuyNow {
			c.buy++
		}
		if a.SellNow {
			c.sell++
		}
	}
	for i := range out {
		c := counts[out[i].Symbol]
		out[i].BuyPct = float64(c.buy) * 100 / float64(c.total)
		out[i].SellPct = float64(c.sell) * 100 / float64(c.total)
	}
	return out
}
