// Package history maintains per-symbol price series: candle normalization,
// cleanup, flat-file persistence and horizon sampling.
package history

import (
	"sort"
	"time"

	"RSITrader/internal/broker"
	"RSITrader/internal/model"
)

// CloseOffset shifts a candle's open timestamp to its close.
func CloseOffset(res model.Resolution) time.Duration {
	switch res {
	case model.ResDaily:
		return 15 * time.Hour
	case model.ResFifteenMinute:
		return 14 * time.Minute
	case model.ResMinute:
		return 50 * time.Second
	}
	return 0
}

// FromCandles converts a candle batch to close-time price points.
func FromCandles(candles []broker.Candle, res model.Resolution) []model.PricePoint {
	off := CloseOffset(res).Milliseconds()
	out := make([]model.PricePoint, 0, len(candles))
	for _, c := range candles {
		out = append(out, model.PricePoint{Timestamp: c.Datetime + off, Price: c.Close, Resolution: res})
	}
	return out
}

func less(a, b model.PricePoint) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp > b.Timestamp
	}
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Resolution > b.Resolution
}

// SortDesc orders points newest first.
func SortDesc(pts []model.PricePoint) {
	sort.SliceStable(pts, func(i, j int) bool { return less(pts[i], pts[j]) })
}

// Clean drops non-positive prices, sorts newest first, removes exact
// duplicates and resolves interleaved candles of different resolutions.
func Clean(pts []model.PricePoint) []model.PricePoint {
	out := make([]model.PricePoint, 0, len(pts))
	for _, p := range pts {
		if p.Price > 0 {
			out = append(out, p)
		}
	}
	SortDesc(out)
	out = dedupe(out)
	out = coherence(out)
	out = coherence(out)
	SortDesc(out)
	return out
}

// dedupe expects sorted input.
func dedupe(pts []model.PricePoint) []model.PricePoint {
	if len(pts) == 0 {
		return pts
	}
	out := pts[:1]
	for _, p := range pts[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

// coherence walks newest to oldest with a four point lookback. When the
// current point's resolution reappears after one, two or three points of a
// different resolution, those intervening coarse points are dropped. Points at
// tick or one-minute resolution are never dropped.
func coherence(pts []model.PricePoint) []model.PricePoint {
	if len(pts) < 3 {
		return pts
	}
	drop := make([]bool, len(pts))
	res := func(i int) model.Resolution { return pts[i].Resolution }
	prune := func(cur int, slots ...*int) {
		for _, s := range slots {
			if res(*s) > model.ResMinute {
				drop[*s] = true
				*s = cur
			}
		}
	}

	var p, pp, ppp, pppp int
	for i := range pts {
		cur := res(i)
		if res(pppp) == cur && res(ppp) != cur && res(pp) != cur && res(p) != cur {
			prune(i, &p, &pp, &ppp)
		}
		if res(ppp) == cur && res(pp) != cur && res(p) != cur {
			prune(i, &p, &pp)
		}
		if res(pp) == cur && res(p) != cur {
			prune(i, &p)
		}
		pppp, ppp, pp, p = ppp, pp, p, i
	}

	out := pts[:0:0]
	for i, pt := range pts {
		if !drop[i] {
			out = append(out, pt)
		}
	}
	return out
}
