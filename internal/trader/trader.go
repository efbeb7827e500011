// Package trader runs the polling loop: refresh indicators, report status,
// and drive every order slot through its lifecycle until told to stop.
package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RSITrader/internal/clock"
	"RSITrader/internal/collector"
	"RSITrader/internal/desk"
	"RSITrader/internal/flagfile"
	"RSITrader/internal/metrics"
	"RSITrader/internal/model"
	"RSITrader/internal/notifier"
	"RSITrader/internal/orderbook"
	"RSITrader/internal/recorder"
	"RSITrader/internal/strategy"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notifier delivers chat messages. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, sev notifier.Severity, text string) error
}

// Options are the files and limits that end a run.
type Options struct {
	StopFile     string
	BuyGateFile  string
	CutoffHour   int
	CutoffMinute int
	Location     *time.Location
}

// Trader is one run of the trading loop.
type Trader struct {
	book      *orderbook.Book
	collector *collector.Collector
	engine    *strategy.Engine
	recorder  recorder.Recorder
	notifier  Notifier
	clock     clock.Clock
	opts      Options
	runID     string
	log       *logrus.Entry

	mu         sync.Mutex
	lastStatus string
}

// New wires a Trader. The desk claims order ids from the book. n may be nil.
func New(book *orderbook.Book, col *collector.Collector, d *desk.Desk, rec recorder.Recorder, n Notifier, clk clock.Clock, opts Options, log *logrus.Entry) *Trader {
	runID := uuid.NewString()
	t := &Trader{
		book:      book,
		collector: col,
		recorder:  rec,
		notifier:  n,
		clock:     clk,
		opts:      opts,
		runID:     runID,
		log:       log.WithField("run", runID),
	}
	d.SetClaims(book)
	t.engine = strategy.NewEngine(d, book.Save, t.onEvent, t.log)
	return t
}

// RunID identifies this run in logs and recorded rows.
func (t *Trader) RunID() string { return t.runID }

// LastStatus returns the most recent status report.
func (t *Trader) LastStatus() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastStatus == "" {
		return "no cycle completed yet"
	}
	return t.lastStatus
}

// Tick runs one full cycle.
func (t *Trader) Tick(ctx context.Context) error {
	started := t.clock.Now()
	if err := t.collector.RefreshAll(ctx); err != nil {
		return fmt.Errorf("refresh indicators: %w", err)
	}

	ind := t.collector.Indicators()
	t.report(started, ind)

	for i, s := range t.book.States() {
		snap, ok := ind[s.Symbol]
		if !ok {
			return fmt.Errorf("%s: no indicators for symbol", s.OrderRule)
		}
		if err := t.engine.Evaluate(ctx, s, snap, t.book.PriorBuyPrice(i)); err != nil {
			return err
		}
	}

	metrics.CyclesTotal.Inc()
	metrics.CycleSeconds.Observe(t.clock.Now().Sub(started).Seconds())
	return nil
}

// report logs the status tables and records the cycle.
func (t *Trader) report(at time.Time, ind map[string]model.MarketIndicators) {
	snaps := t.collector.Snapshots()
	list := make([]model.MarketIndicators, 0, len(snaps))
	for _, s := range snaps {
		list = append(list, ind[s.Symbol])
	}
	aggs := strategy.Aggregate(t.book.States(), ind)

	t.log.Info("indicators\n" + notifier.FormatIndicators(list))
	t.log.Info("signals\n" + notifier.FormatAggregates(aggs))

	t.mu.Lock()
	t.lastStatus = notifier.FormatStatus(at.In(t.opts.Location), list, aggs)
	t.mu.Unlock()

	for _, m := range list {
		if err := t.recorder.RecordCycle(&recorder.Cycle{RunID: t.runID, At: at, Indicators: m}); err != nil {
			t.log.WithError(err).Error("record cycle")
		}
	}
}

func (t *Trader) onEvent(ev strategy.Event) {
	leg := ev.State.Leg(ev.Side)
	if err := t.recorder.RecordOrderEvent(&recorder.OrderEvent{
		RunID: t.runID, At: t.clock.Now(), Key: ev.State.OrderRule.String(), Side: ev.Side, Event: ev.Name,
		OrderID: leg.OrderID, Shares: leg.Shares, Price: leg.Price, Status: leg.Status,
	}); err != nil {
		t.log.WithError(err).Error("record order event")
	}
	t.trySend(context.Background(), notifier.Info, notifier.FormatOrderEvent(ev.Name, ev.State, ev.Side))
}

// stopRequested reports whether the stop marker exists or the cutoff passed.
func (t *Trader) stopRequested() (bool, string) {
	if flagfile.Exists(t.opts.StopFile) {
		return true, "stop file present"
	}
	now := t.clock.Now().In(t.opts.Location)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), t.opts.CutoffHour, t.opts.CutoffMinute, 0, 0, t.opts.Location)
	if now.After(cutoff) {
		return true, "daily cutoff reached"
	}
	return false, ""
}

// Run loops Tick until the stop marker appears, the cutoff passes or ctx
// ends. State is persisted on every exit path. A fatal error is returned
// after the abort handling.
func (t *Trader) Run(ctx context.Context) error {
	t.log.WithFields(logrus.Fields{"orders": len(t.book.States()), "symbols": len(t.collector.Snapshots())}).Info("trading loop started")
	for {
		if stop, why := t.stopRequested(); stop {
			t.log.WithField("reason", why).Info("trading loop stopping")
			break
		}
		if ctx.Err() != nil {
			t.log.Info("trading loop cancelled")
			break
		}
		if err := t.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			return t.abort(err)
		}
	}

	if err := t.persist(); err != nil {
		return t.abort(err)
	}
	if renamed, err := flagfile.Disarm(t.opts.StopFile); err != nil {
		t.log.WithError(err).Error("disarm stop file")
	} else if renamed {
		t.log.WithField("file", flagfile.Disarmed(t.opts.StopFile)).Info("stop file disarmed")
	}
	t.log.Info("trading loop ended")
	return nil
}

// persist saves the order book and every price series. It ignores
// cancellation so a stopped run still writes its state.
func (t *Trader) persist() error {
	ctx := context.Background()
	if err := t.book.Save(ctx); err != nil {
		return fmt.Errorf("save order book: %w", err)
	}
	if err := t.collector.SaveAll(ctx); err != nil {
		return err
	}
	return nil
}

// abort is the single exit path for fatal errors: log, persist what is
// known, alert and hand the error back to main.
func (t *Trader) abort(cause error) error {
	t.log.WithError(cause).Error("trading loop aborted")
	if err := t.persist(); err != nil {
		t.log.WithError(err).Error("persist after abort")
	}
	t.trySend(context.Background(), notifier.Alert, notifier.FormatAbort(cause))
	return cause
}

func (t *Trader) trySend(ctx context.Context, sev notifier.Severity, text string) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Notify(ctx, sev, text); err != nil {
		t.log.WithError(err).Error("send notification")
	}
}
