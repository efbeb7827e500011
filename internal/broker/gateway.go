package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RSITrader/internal/clock"
	"RSITrader/internal/metrics"
	"RSITrader/internal/model"

	"github.com/sirupsen/logrus"
)

// A historical batch is accepted without retrying only when it holds more
// than MinBatchCandles candles.
const MinBatchCandles = 10

var (
	// ErrEmptyHistory marks a historical batch with no candles.
	ErrEmptyHistory = errors.New("empty history batch")
	// ErrShortHistory marks a historical batch with at most MinBatchCandles candles.
	ErrShortHistory = errors.New("short history batch")
	// ErrEmptyQuote marks a quote without a usable last price.
	ErrEmptyQuote = errors.New("empty quote")
)

// ExhaustedError reports a call that failed on every permitted attempt.
type ExhaustedError struct {
	Call     string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("broker %s: gave up after %d attempts: %v", e.Call, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// TokenSource keeps credentials fresh before each request.
type TokenSource interface {
	Ensure(ctx context.Context) error
}

// Gateway applies token refresh, request pacing and the retry policy to an API.
type Gateway struct {
	api          API
	tokens       TokenSource
	clock        clock.Clock
	policy       Policy
	requestDelay time.Duration
	log          *logrus.Entry
}

// NewGateway wraps api. tokens may be nil for brokers without credentials.
func NewGateway(api API, tokens TokenSource, clk clock.Clock, policy Policy, requestDelay time.Duration, log *logrus.Entry) *Gateway {
	return &Gateway{
		api:          api,
		tokens:       tokens,
		clock:        clk,
		policy:       policy,
		requestDelay: requestDelay,
		log:          log,
	}
}

func (g *Gateway) call(ctx context.Context, name string, op func(ctx context.Context) error) Result {
	attempt := 0
	return Retry(ctx, g.clock, g.policy, func(ctx context.Context) error {
		attempt++
		if err := g.clock.Sleep(ctx, g.requestDelay); err != nil {
			return err
		}
		if g.tokens != nil {
			if err := g.tokens.Ensure(ctx); err != nil {
				return fmt.Errorf("refresh tokens: %w", err)
			}
		}
		err := op(ctx)
		if err != nil {
			metrics.BrokerRetries.WithLabelValues(name).Inc()
			g.log.WithFields(logrus.Fields{"call": name, "attempt": attempt}).WithError(err).Warn("broker call failed")
		}
		return err
	})
}

func exhausted(name string, r Result) error {
	return &ExhaustedError{Call: name, Attempts: r.Attempts, Err: r.Err}
}

// History fetches one candle batch. A batch that stays empty through every
// attempt is returned as nil without error, since new listings have no history.
func (g *Gateway) History(ctx context.Context, symbol string, res model.Resolution, start, end time.Time) ([]Candle, error) {
	var out []Candle
	r := g.call(ctx, "history", func(ctx context.Context) error {
		c, err := g.api.History(ctx, symbol, res, start, end)
		if err != nil {
			return err
		}
		if len(c) == 0 {
			return ErrEmptyHistory
		}
		if len(c) <= MinBatchCandles {
			return fmt.Errorf("%w: %d candles", ErrShortHistory, len(c))
		}
		out = c
		return nil
	})
	if r.OK() {
		return out, nil
	}
	if errors.Is(r.Err, ErrEmptyHistory) {
		g.log.WithFields(logrus.Fields{"symbol": symbol, "resolution": res}).Warn("no history returned, treating as new listing")
		return nil, nil
	}
	return nil, exhausted("history "+symbol, r)
}

// Quote fetches the last trade price. Unlike History an empty quote is never tolerated.
func (g *Gateway) Quote(ctx context.Context, symbol string) (float64, error) {
	var price float64
	r := g.call(ctx, "quote", func(ctx context.Context) error {
		p, err := g.api.Quote(ctx, symbol)
		if err != nil {
			return err
		}
		if p <= 0 {
			return ErrEmptyQuote
		}
		price = p
		return nil
	})
	if !r.OK() {
		return 0, exhausted("quote "+symbol, r)
	}
	return price, nil
}

// MarketHours fetches the session schedule for date.
func (g *Gateway) MarketHours(ctx context.Context, date time.Time) (model.MarketHours, error) {
	var hours model.MarketHours
	r := g.call(ctx, "hours", func(ctx context.Context) error {
		h, err := g.api.MarketHours(ctx, date)
		if err != nil {
			return err
		}
		hours = h
		return nil
	})
	if !r.OK() {
		return model.MarketHours{}, exhausted("hours", r)
	}
	return hours, nil
}

// PlaceOrder submits o for account.
func (g *Gateway) PlaceOrder(ctx context.Context, account string, o Order) error {
	r := g.call(ctx, "place", func(ctx context.Context) error {
		return g.api.PlaceOrder(ctx, account, o)
	})
	if !r.OK() {
		return exhausted("place "+o.Symbol(), r)
	}
	metrics.OrdersTotal.WithLabelValues(o.Symbol(), o.Instruction()).Inc()
	return nil
}

// ListOrders returns the orders entered for account between from and to.
func (g *Gateway) ListOrders(ctx context.Context, account string, from, to time.Time) ([]Order, error) {
	var out []Order
	r := g.call(ctx, "list", func(ctx context.Context) error {
		o, err := g.api.ListOrders(ctx, account, from, to)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if !r.OK() {
		return nil, exhausted("list orders", r)
	}
	return out, nil
}

// GetOrder fetches a single order by id.
func (g *Gateway) GetOrder(ctx context.Context, account string, id int64) (Order, error) {
	var out Order
	r := g.call(ctx, "get", func(ctx context.Context) error {
		o, err := g.api.GetOrder(ctx, account, id)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if !r.OK() {
		return Order{}, exhausted(fmt.Sprintf("get order %d", id), r)
	}
	return out, nil
}
