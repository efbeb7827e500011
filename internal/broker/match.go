package broker

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrOrderNotFound means the broker has no order matching local state.
var ErrOrderNotFound = errors.New("order not found at broker")

func legMatches(got, want Order) bool {
	if got.OrderType != OrderTypeLimit || len(got.Legs) == 0 || len(want.Legs) == 0 {
		return false
	}
	g, w := got.Legs[0], want.Legs[0]
	return g.Instruction == w.Instruction &&
		g.Instrument.Symbol == w.Instrument.Symbol &&
		g.Quantity == w.Quantity
}

func accountMatches(o Order, account string) bool {
	return o.AccountID == 0 || strconv.FormatInt(o.AccountID, 10) == account
}

// candidate reports whether a listed order could be the one just submitted.
func candidate(got, want Order, account string) bool {
	if got.Status == StatusCanceled || got.Duration != want.Duration || got.OrderStrategyType != want.OrderStrategyType {
		return false
	}
	if !accountMatches(got, account) || !legMatches(got, want) || !got.Price.Equal(want.Price) {
		return false
	}
	if want.OrderStrategyType != StrategyTrigger {
		return true
	}
	if len(got.Children) == 0 || len(want.Children) == 0 {
		return false
	}
	gc, wc := got.Children[0], want.Children[0]
	return legMatches(gc, wc) && gc.Price.Equal(wc.Price)
}

// FindPlaced locates the order just submitted among listed orders, skipping
// any order id already claimed by local state. For brackets sellID is the
// child order's id.
func FindPlaced(listed []Order, want Order, account string, claimed map[int64]bool) (buyID, sellID int64, err error) {
	for _, o := range listed {
		if !candidate(o, want, account) || claimed[o.OrderID] {
			continue
		}
		if want.OrderStrategyType == StrategyTrigger {
			child := o.Children[0].OrderID
			if claimed[child] {
				continue
			}
			return o.OrderID, child, nil
		}
		return o.OrderID, 0, nil
	}
	return 0, 0, fmt.Errorf("%w: %s %s %v @ %s", ErrOrderNotFound, want.Instruction(), want.Symbol(), want.Legs[0].Quantity, want.Price)
}

// CheckStatus validates a fetched order against the expected leg and returns
// its status. When lowerPriceOK is set the broker price may sit below the
// expected price, which happens when a resting buy is adjusted for a dividend.
func CheckStatus(got, want Order, account string, lowerPriceOK bool) (string, error) {
	priceOK := got.Price.Equal(want.Price) || (lowerPriceOK && got.Price.LessThan(want.Price))
	if !accountMatches(got, account) || !legMatches(got, want) || !priceOK {
		return "", fmt.Errorf("%w: order %d does not match %s %s @ %s", ErrOrderNotFound, got.OrderID, want.Instruction(), want.Symbol(), want.Price)
	}
	return got.Status, nil
}
