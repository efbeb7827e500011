// Package desk is the runtime context shared by the trading components:
// broker gateway, session phase, account aliases and the buying gate.
package desk

import (
	"context"
	"fmt"
	"time"

	"RSITrader/internal/broker"
	"RSITrader/internal/clock"
	"RSITrader/internal/flagfile"
	"RSITrader/internal/model"
	"RSITrader/internal/session"

	"github.com/sirupsen/logrus"
)

// Broker is the subset of the gateway the desk uses.
type Broker interface {
	PlaceOrder(ctx context.Context, account string, o broker.Order) error
	ListOrders(ctx context.Context, account string, from, to time.Time) ([]broker.Order, error)
	GetOrder(ctx context.Context, account string, id int64) (broker.Order, error)
}

// Claims lists broker order ids already held by local state.
type Claims interface {
	ClaimedIDs() map[int64]bool
}

// Desk resolves accounts and sessions and places orders for the lifecycle.
type Desk struct {
	broker      Broker
	Session     *session.Tracker
	Clock       clock.Clock
	accounts    map[string]string
	regularOnly map[string]bool
	buyGateFile string
	claims      Claims
	log         *logrus.Entry
}

// New builds a Desk. buyGateFile is the marker whose presence enables buying.
func New(b Broker, tracker *session.Tracker, clk clock.Clock, accounts map[string]string, regularOnly []string, buyGateFile string, log *logrus.Entry) *Desk {
	ro := make(map[string]bool, len(regularOnly))
	for _, s := range regularOnly {
		ro[s] = true
	}
	return &Desk{
		broker:      b,
		Session:     tracker,
		Clock:       clk,
		accounts:    accounts,
		regularOnly: ro,
		buyGateFile: buyGateFile,
		log:         log,
	}
}

// SetClaims attaches the source of claimed order ids, normally the order book.
func (d *Desk) SetClaims(c Claims) { d.claims = c }

// Phase is the session phase now.
func (d *Desk) Phase() session.Phase { return d.Session.PhaseAt(d.Clock.Now()) }

// RegularOnly reports whether symbol trades in the regular session only.
func (d *Desk) RegularOnly(symbol string) bool { return d.regularOnly[symbol] }

// BuyingEnabled reports whether the buying marker file exists.
func (d *Desk) BuyingEnabled() bool {
	if d.buyGateFile == "" {
		return false
	}
	return flagfile.Exists(d.buyGateFile)
}

// Account resolves an alias to the broker account number.
func (d *Desk) Account(alias string) (string, error) {
	acct, ok := d.accounts[alias]
	if !ok {
		return "", fmt.Errorf("unknown account alias %q", alias)
	}
	return acct, nil
}

// expected rebuilds the broker order that matches the leg for side.
func (d *Desk) expected(s *model.OrderState, side model.Side) broker.Order {
	if side == model.SideBuy && s.Kind == model.KindConditional {
		return broker.NewBracketOrder(s.Symbol, s.Buy.Shares, s.Buy.Price, s.Sell.Shares, s.Sell.Price)
	}
	leg := s.Leg(side)
	return broker.NewLimitOrder(s.Symbol, side, leg.Shares, leg.Price, session.OrderSession(s.Kind, d.RegularOnly(s.Symbol)))
}

// Submit places the leg, finds its broker id among today's orders and
// records the initial status.
func (d *Desk) Submit(ctx context.Context, s *model.OrderState, side model.Side) error {
	acct, err := d.Account(s.Account)
	if err != nil {
		return err
	}
	want := d.expected(s, side)
	if err := d.broker.PlaceOrder(ctx, acct, want); err != nil {
		return err
	}

	today := d.Clock.Now().In(d.Session.Location())
	listed, err := d.broker.ListOrders(ctx, acct, today, today)
	if err != nil {
		return err
	}
	var claimed map[int64]bool
	if d.claims != nil {
		claimed = d.claims.ClaimedIDs()
	}
	buyID, sellID, err := broker.FindPlaced(listed, want, acct, claimed)
	if err != nil {
		return err
	}

	leg := s.Leg(side)
	leg.OrderID = buyID
	if want.OrderStrategyType == broker.StrategyTrigger {
		s.Sell.OrderID = sellID
	}
	d.log.WithFields(logrus.Fields{"order": s.OrderRule.String(), "side": side.String(), "id": buyID}).Debug("order located")
	return d.Refresh(ctx, s, side)
}

// Refresh fetches the broker status for the leg and stores it.
func (d *Desk) Refresh(ctx context.Context, s *model.OrderState, side model.Side) error {
	acct, err := d.Account(s.Account)
	if err != nil {
		return err
	}
	leg := s.Leg(side)
	got, err := d.broker.GetOrder(ctx, acct, leg.OrderID)
	if err != nil {
		return err
	}
	want := broker.NewLimitOrder(s.Symbol, side, leg.Shares, leg.Price, "")
	status, err := broker.CheckStatus(got, want, acct, side == model.SideBuy)
	if err != nil {
		return err
	}
	leg.Status = status
	return nil
}
