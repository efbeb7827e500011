package broker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"RSITrader/internal/model"

	"github.com/shopspring/decimal"
)

// MarketData is the read-only half of API.
type MarketData interface {
	History(ctx context.Context, symbol string, res model.Resolution, start, end time.Time) ([]Candle, error)
	Quote(ctx context.Context, symbol string) (float64, error)
	MarketHours(ctx context.Context, date time.Time) (model.MarketHours, error)
}

// Paper is an in-memory broker. Market data comes from an optional delegate
// or from values set on it; limit orders fill when a quote crosses them.
type Paper struct {
	mu      sync.Mutex
	data    MarketData
	hoursFn func(date time.Time) model.MarketHours

	candles map[string]map[model.Resolution][]Candle
	quotes  map[string]float64
	orders  map[string][]*Order
	byID    map[int64]*Order
	nextID  int64
}

// NewPaper creates a paper broker. data and hoursFn may both be nil.
func NewPaper(data MarketData, hoursFn func(date time.Time) model.MarketHours) *Paper {
	return &Paper{
		data:    data,
		hoursFn: hoursFn,
		candles: make(map[string]map[model.Resolution][]Candle),
		quotes:  make(map[string]float64),
		orders:  make(map[string][]*Order),
		byID:    make(map[int64]*Order),
		nextID:  1000000000,
	}
}

// SetCandles replaces the candles served for symbol at res.
func (p *Paper) SetCandles(symbol string, res model.Resolution, candles []Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.candles[symbol] == nil {
		p.candles[symbol] = make(map[model.Resolution][]Candle)
	}
	p.candles[symbol][res] = candles
}

// SetQuote sets the last price for symbol.
func (p *Paper) SetQuote(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = price
}

func (p *Paper) History(ctx context.Context, symbol string, res model.Resolution, start, end time.Time) ([]Candle, error) {
	if p.data != nil {
		return p.data.History(ctx, symbol, res, start, end)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Candle
	for _, c := range p.candles[symbol][res] {
		if c.Datetime >= start.UnixMilli() && c.Datetime <= end.UnixMilli() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p *Paper) Quote(ctx context.Context, symbol string) (float64, error) {
	var price float64
	if p.data != nil {
		q, err := p.data.Quote(ctx, symbol)
		if err != nil {
			return 0, err
		}
		price = q
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		price = p.quotes[symbol]
	}
	p.cross(symbol, price)
	return price, nil
}

func (p *Paper) MarketHours(ctx context.Context, date time.Time) (model.MarketHours, error) {
	if p.data != nil {
		return p.data.MarketHours(ctx, date)
	}
	if p.hoursFn == nil {
		return model.MarketHours{}, fmt.Errorf("paper broker: no market hours source")
	}
	return p.hoursFn(date), nil
}

func (p *Paper) PlaceOrder(_ context.Context, account string, o Order) error {
	if len(o.Legs) == 0 {
		return fmt.Errorf("paper broker: order without legs")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, err := strconv.ParseInt(account, 10, 64)
	if err != nil {
		return fmt.Errorf("paper broker: account %q: %w", account, err)
	}
	placed := o
	placed.Children = append([]Order(nil), o.Children...)
	placed.OrderID = p.id()
	placed.AccountID = acct
	placed.Status = StatusWorking
	for i := range placed.Children {
		placed.Children[i].OrderID = p.id()
		placed.Children[i].AccountID = acct
		placed.Children[i].Status = StatusAwaitingParent
	}
	p.orders[account] = append(p.orders[account], &placed)
	p.byID[placed.OrderID] = &placed
	for i := range placed.Children {
		p.byID[placed.Children[i].OrderID] = &placed.Children[i]
	}
	return nil
}

func (p *Paper) id() int64 {
	p.nextID++
	return p.nextID
}

// ListOrders returns every order for account, newest first.
func (p *Paper) ListOrders(_ context.Context, account string, _, _ time.Time) ([]Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Order, 0, len(p.orders[account]))
	for _, o := range p.orders[account] {
		out = append(out, *o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderID > out[j].OrderID })
	return out, nil
}

func (p *Paper) GetOrder(_ context.Context, account string, id int64) (Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.byID[id]
	if !ok || strconv.FormatInt(o.AccountID, 10) != account {
		return Order{}, fmt.Errorf("paper broker: order %d not found for %s", id, account)
	}
	return *o, nil
}

// Fill marks an order filled and releases its bracket child.
func (p *Paper) Fill(id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("paper broker: order %d not found", id)
	}
	p.fill(o)
	return nil
}

// SetStatus overwrites an order's status.
func (p *Paper) SetStatus(id int64, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("paper broker: order %d not found", id)
	}
	o.Status = status
	return nil
}

func (p *Paper) fill(o *Order) {
	o.Status = model.StatusFilled
	for i := range o.Children {
		if o.Children[i].Status == StatusAwaitingParent {
			o.Children[i].Status = StatusWorking
		}
	}
}

// cross fills working limit orders on symbol that price has reached.
func (p *Paper) cross(symbol string, price float64) {
	if price <= 0 {
		return
	}
	last := decimal.NewFromFloat(price)
	for _, o := range p.byID {
		if o.Status != StatusWorking || o.Symbol() != symbol {
			continue
		}
		switch o.Instruction() {
		case model.SideBuy.String():
			if last.LessThanOrEqual(o.Price) {
				p.fill(o)
			}
		case model.SideSell.String():
			if last.GreaterThanOrEqual(o.Price) {
				p.fill(o)
			}
		}
	}
}
