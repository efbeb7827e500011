// Package collector keeps one market indicator snapshot per symbol: it syncs
// the price history, appends live ticks and computes the RSI set.
package collector

import (
	"context"
	"fmt"
	"time"

	"RSITrader/internal/broker"
	"RSITrader/internal/calculator"
	"RSITrader/internal/clock"
	"RSITrader/internal/history"
	"RSITrader/internal/metrics"
	"RSITrader/internal/model"
	"RSITrader/internal/session"

	"github.com/sirupsen/logrus"
)

const (
	day     = 24 * time.Hour
	year    = 365 * day
	quarter = 90 * day

	// MinStoredPoints is the smallest stored series trusted as a watermark.
	MinStoredPoints = 100
)

// Source supplies candles and last prices.
type Source interface {
	History(ctx context.Context, symbol string, res model.Resolution, start, end time.Time) ([]broker.Candle, error)
	Quote(ctx context.Context, symbol string) (float64, error)
}

// Sessions reports the trading phase and per-symbol session restrictions.
type Sessions interface {
	Phase() session.Phase
	RegularOnly(symbol string) bool
}

// Snapshot is the price series and indicators of one symbol.
type Snapshot struct {
	Symbol string

	points     []model.PricePoint
	lastUpdate time.Time
	rsi        model.RSISet
	lastPrice  float64
	loaded     bool
}

// Indicators returns the latest computed values.
func (s *Snapshot) Indicators() model.MarketIndicators {
	return model.MarketIndicators{Symbol: s.Symbol, RSI: s.rsi, LastPrice: s.lastPrice, LastUpdate: s.lastUpdate}
}

// Points returns the cleaned series, newest first.
func (s *Snapshot) Points() []model.PricePoint { return s.points }

// Collector owns the snapshots of every traded symbol.
type Collector struct {
	source   Source
	sessions Sessions
	store    *history.Store
	clock    clock.Clock
	loc      *time.Location
	log      *logrus.Entry

	snapshots []*Snapshot
	bySymbol  map[string]*Snapshot
}

// New creates a Collector with one snapshot per distinct symbol, in order.
func New(symbols []string, source Source, sessions Sessions, store *history.Store, clk clock.Clock, loc *time.Location, log *logrus.Entry) *Collector {
	c := &Collector{
		source:   source,
		sessions: sessions,
		store:    store,
		clock:    clk,
		loc:      loc,
		log:      log,
		bySymbol: make(map[string]*Snapshot),
	}
	for _, sym := range symbols {
		if _, ok := c.bySymbol[sym]; ok {
			continue
		}
		s := &Snapshot{Symbol: sym}
		c.snapshots = append(c.snapshots, s)
		c.bySymbol[sym] = s
	}
	return c
}

// Snapshots returns the snapshots in first-seen symbol order.
func (c *Collector) Snapshots() []*Snapshot { return c.snapshots }

// Get returns the snapshot for symbol.
func (c *Collector) Get(symbol string) (*Snapshot, bool) {
	s, ok := c.bySymbol[symbol]
	return s, ok
}

// Indicators returns the current indicators keyed by symbol.
func (c *Collector) Indicators() map[string]model.MarketIndicators {
	out := make(map[string]model.MarketIndicators, len(c.snapshots))
	for _, s := range c.snapshots {
		out[s.Symbol] = s.Indicators()
	}
	return out
}

// RefreshAll refreshes every snapshot in order, stopping at the first error.
func (c *Collector) RefreshAll(ctx context.Context) error {
	for _, s := range c.snapshots {
		if err := c.Refresh(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// SaveAll writes every non-empty series to the store.
func (c *Collector) SaveAll(ctx context.Context) error {
	for _, s := range c.snapshots {
		if len(s.points) == 0 {
			continue
		}
		if err := c.store.Save(ctx, s.Symbol, s.points); err != nil {
			return fmt.Errorf("save %s history: %w", s.Symbol, err)
		}
	}
	return nil
}

// load reads the stored series once. The watermark is the file's
// modification time, or three years back when too little is stored.
func (c *Collector) load(s *Snapshot) error {
	pts, mod, err := c.store.Load(s.Symbol)
	if err != nil {
		return err
	}
	s.points = pts
	s.lastUpdate = mod
	if len(pts) < MinStoredPoints {
		s.lastUpdate = c.clock.Now().Add(-3 * year)
	}
	s.loaded = true
	c.log.WithFields(logrus.Fields{"symbol": s.Symbol, "points": len(pts), "watermark": s.lastUpdate}).Debug("history loaded")
	return nil
}

// Refresh syncs the symbol's history, appends a live tick when the session
// allows and recomputes the RSI set and last price.
func (c *Collector) Refresh(ctx context.Context, s *Snapshot) error {
	if !s.loaded {
		if err := c.load(s); err != nil {
			return err
		}
	}
	if err := c.sync(ctx, s, c.clock.Now()); err != nil {
		return err
	}

	// The mark is fixed before the live quote, so a tick only enters the
	// RSI walk from the next cycle on.
	mark := c.clock.Now()
	s.lastUpdate = mark
	if session.AllowsTick(c.sessions.RegularOnly(s.Symbol), c.sessions.Phase()) {
		price, err := c.source.Quote(ctx, s.Symbol)
		if err != nil {
			return err
		}
		s.lastUpdate = c.clock.Now()
		s.points = append(s.points, model.PricePoint{Timestamp: s.lastUpdate.UnixMilli(), Price: price, Resolution: model.ResTick})
	}
	s.points = history.Clean(s.points)

	for _, h := range model.Horizons {
		v, err := calculator.CalculateRSI(history.Sample(s.points, h, mark, c.loc))
		if err != nil {
			return fmt.Errorf("%s %s rsi: %w", s.Symbol, h, err)
		}
		s.rsi[h] = v
		metrics.RSI.WithLabelValues(s.Symbol, h.String()).Set(v)
	}

	last, err := c.source.Quote(ctx, s.Symbol)
	if err != nil {
		return err
	}
	s.lastPrice = last
	metrics.LastPrice.WithLabelValues(s.Symbol).Set(last)
	return nil
}

// sync pulls candle batches at decreasing resolution depending on how
// stale the watermark is.
func (c *Collector) sync(ctx context.Context, s *Snapshot, now time.Time) error {
	wm := s.lastUpdate
	if wm.Before(now.Add(-year)) {
		for start := now.Add(-3 * year); start.Before(now.Add(-quarter)); {
			end := start.Add(quarter)
			if err := c.fetch(ctx, s, model.ResDaily, start, end); err != nil {
				return err
			}
			start = end
		}
	}
	if wm.Before(now.Add(-quarter)) {
		for start := c.weekday(now.Add(-quarter)); start.Before(now.Add(-5 * day)); {
			end := c.weekday(start.Add(5 * day))
			if err := c.fetch(ctx, s, model.ResFifteenMinute, start, end); err != nil {
				return err
			}
			start = end
		}
	}
	if wm.Before(now.Add(-5 * time.Minute)) {
		if err := c.fetch(ctx, s, model.ResMinute, now.Add(-5*day), now); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) fetch(ctx context.Context, s *Snapshot, res model.Resolution, start, end time.Time) error {
	candles, err := c.source.History(ctx, s.Symbol, res, start, end)
	if err != nil {
		return err
	}
	s.points = append(s.points, history.FromCandles(candles, res)...)
	c.log.WithFields(logrus.Fields{
		"symbol": s.Symbol, "resolution": res.String(), "from": start.Format(time.DateOnly), "to": end.Format(time.DateOnly), "candles": len(candles),
	}).Debug("history batch")
	return nil
}

// weekday moves a weekend time back to the preceding Friday.
func (c *Collector) weekday(t time.Time) time.Time {
	switch t.In(c.loc).Weekday() {
	case time.Saturday:
		return t.Add(-day)
	case time.Sunday:
		return t.Add(-2 * day)
	}
	return t
}
