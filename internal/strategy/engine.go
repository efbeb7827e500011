package strategy

import (
	"context"
	"fmt"

	"RSITrader/internal/model"
	"RSITrader/internal/session"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Desk is the broker-facing runtime the lifecycle drives.
type Desk interface {
	Phase() session.Phase
	RegularOnly(symbol string) bool
	BuyingEnabled() bool
	// Submit places the leg for side (both legs for a conditional buy) and
	// records the broker order ids and statuses on s.
	Submit(ctx context.Context, s *model.OrderState, side model.Side) error
	// Refresh reloads the broker status of the leg for side.
	Refresh(ctx context.Context, s *model.OrderState, side model.Side) error
}

// Event names emitted by the engine.
const (
	EventPlaced = "placed"
	EventStatus = "status"
	EventReset  = "reset"
)

// Event describes a lifecycle change of one order slot.
type Event struct {
	State model.OrderState
	Side  model.Side
	Name  string
}

// Engine moves order slots through Idle, BuyPlaced, BuyFilled, SellPlaced
// and back to Idle, saving the book after every change.
type Engine struct {
	desk   Desk
	save   func(ctx context.Context) error
	notify func(Event)
	log    *logrus.Entry
}

// NewEngine creates an Engine. notify may be nil.
func NewEngine(desk Desk, save func(ctx context.Context) error, notify func(Event), log *logrus.Entry) *Engine {
	if notify == nil {
		notify = func(Event) {}
	}
	return &Engine{desk: desk, save: save, notify: notify, log: log}
}

// Evaluate runs one lifecycle step for s: buy entry, sell entry, status
// refresh and reset, in that order.
func (e *Engine) Evaluate(ctx context.Context, s *model.OrderState, ind model.MarketIndicators, prior decimal.Decimal) error {
	if ind.LastPrice <= 0 {
		return fmt.Errorf("%s: no last price", s.OrderRule)
	}
	if err := e.enterBuy(ctx, s, ind, prior); err != nil {
		return err
	}
	if err := e.enterSell(ctx, s, ind); err != nil {
		return err
	}
	if err := e.refresh(ctx, s); err != nil {
		return err
	}
	return e.reset(ctx, s)
}

func (e *Engine) enterBuy(ctx context.Context, s *model.OrderState, ind model.MarketIndicators, prior decimal.Decimal) error {
	if s.Phase() != model.PhaseIdle || !e.desk.BuyingEnabled() ||
		!session.AllowsOrder(s.Kind, e.desk.RegularOnly(s.Symbol), e.desk.Phase()) {
		return nil
	}
	if !BuyTriggered(s.BuyRSI, ind.RSI) || !GapOpen(prior, s.BuyGap, ind.LastPrice) {
		return nil
	}

	shares := Shares(s.Notional, ind.LastPrice)
	price := BuyPrice(s.BuyAdjust, ind.LastPrice)
	s.Buy = model.Leg{RSI: ind.RSI.Rounded(), Shares: shares, Price: price, Status: model.StatusNewOrder}
	if s.Kind == model.KindConditional {
		s.Sell = model.Leg{Shares: shares, Price: BracketSellPrice(price, s.SellAdjust), Status: model.StatusNewOrder}
	}
	if err := e.desk.Submit(ctx, s, model.SideBuy); err != nil {
		return fmt.Errorf("%s: place buy: %w", s.OrderRule, err)
	}
	e.log.WithFields(logrus.Fields{
		"order": s.OrderRule.String(), "shares": shares, "price": price.StringFixed(2),
		"last": ind.LastPrice, "prior": prior.StringFixed(2), "status": s.Buy.Status,
	}).Info("buy placed")
	e.notify(Event{State: *s, Side: model.SideBuy, Name: EventPlaced})
	return e.save(ctx)
}

func (e *Engine) enterSell(ctx context.Context, s *model.OrderState, ind model.MarketIndicators) error {
	if s.Phase() != model.PhaseBuyFilled || !session.AllowsSell(s.Kind, e.desk.Phase()) {
		return nil
	}
	if !SellTriggered(s.SellRSI, ind.RSI) || !SellPriceOK(s.Buy.Price, s.SellAdjust, ind.LastPrice) {
		return nil
	}

	s.Sell = model.Leg{RSI: ind.RSI.Rounded(), Shares: s.Buy.Shares, Price: SellPrice(ind.LastPrice), Status: model.StatusNewOrder}
	if err := e.desk.Submit(ctx, s, model.SideSell); err != nil {
		return fmt.Errorf("%s: place sell: %w", s.OrderRule, err)
	}
	e.log.WithFields(logrus.Fields{
		"order": s.OrderRule.String(), "shares": s.Sell.Shares, "price": s.Sell.Price.StringFixed(2),
		"fill": s.Buy.Price.StringFixed(2), "last": ind.LastPrice, "status": s.Sell.Status,
	}).Info("sell placed")
	e.notify(Event{State: *s, Side: model.SideSell, Name: EventPlaced})
	return e.save(ctx)
}

func (e *Engine) refreshLeg(ctx context.Context, s *model.OrderState, side model.Side) error {
	leg := s.Leg(side)
	before := leg.Status
	if err := e.desk.Refresh(ctx, s, side); err != nil {
		return fmt.Errorf("%s: %s status: %w", s.OrderRule, side, err)
	}
	if leg.Status == before {
		return nil
	}
	e.log.WithFields(logrus.Fields{"order": s.OrderRule.String(), "side": side.String(), "from": before, "to": leg.Status}).Info("order status changed")
	e.notify(Event{State: *s, Side: side, Name: EventStatus})
	return e.save(ctx)
}

func (e *Engine) refresh(ctx context.Context, s *model.OrderState) error {
	if s.Buy.Placed() && !s.Buy.Filled() {
		if err := e.refreshLeg(ctx, s, model.SideBuy); err != nil {
			return err
		}
	}
	if s.Buy.Filled() && s.Sell.Placed() && !s.Sell.Filled() {
		return e.refreshLeg(ctx, s, model.SideSell)
	}
	return nil
}

func (e *Engine) reset(ctx context.Context, s *model.OrderState) error {
	if s.Phase() != model.PhaseCycleComplete {
		return nil
	}
	done := *s
	s.Reset()
	e.log.WithField("order", s.OrderRule.String()).Info("cycle complete, slot reset")
	e.notify(Event{State: done, Side: model.SideSell, Name: EventReset})
	return e.save(ctx)
}
