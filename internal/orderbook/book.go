// Package orderbook persists the chain of order slots in the fixed-width
// order-state file and answers chain queries over it.
package orderbook

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"RSITrader/internal/clock"
	"RSITrader/internal/model"

	"github.com/shopspring/decimal"
)

// HeaderLines precede the data rows in the order-state file.
const HeaderLines = 7

var (
	ErrDuplicateKey = errors.New("duplicate order key")
	ErrSequenceGap  = errors.New("order chain sequence gap")
)

// Book is the loaded order-state file. It is saved after every mutation.
type Book struct {
	mu       sync.Mutex
	path     string
	header   []string
	states   []*model.OrderState
	clock    clock.Clock
	ioDelay  time.Duration
	template string
}

// Load reads and validates the order-state file. When template names an
// existing file its first HeaderLines lines replace the header on save.
func Load(path, template string, clk clock.Clock, ioDelay time.Duration) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open order state: %w", err)
	}
	defer f.Close()

	b := &Book{path: path, clock: clk, ioDelay: ioDelay, template: template}
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if n <= HeaderLines {
			b.header = append(b.header, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		s, err := Decode(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		b.states = append(b.states, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read order state: %w", err)
	}

	sortStates(b.states)
	if err := Validate(b.states); err != nil {
		return nil, err
	}
	return b, nil
}

func sortStates(states []*model.OrderState) {
	sort.SliceStable(states, func(i, j int) bool {
		a, c := states[i], states[j]
		if a.Symbol != c.Symbol {
			return a.Symbol < c.Symbol
		}
		if a.Period != c.Period {
			return a.Period < c.Period
		}
		if a.Kind != c.Kind {
			return a.Kind.String() < c.Kind.String()
		}
		return a.Seq < c.Seq
	})
}

// Validate expects states sorted by chain then sequence. Every chain must be
// numbered 1..n with no duplicates.
func Validate(states []*model.OrderState) error {
	for i, s := range states {
		first := i == 0 || states[i-1].Chain() != s.Chain()
		switch {
		case !first && states[i-1].Seq == s.Seq:
			return fmt.Errorf("%w: %s", ErrDuplicateKey, s.OrderRule)
		case first && s.Seq != 1:
			return fmt.Errorf("%w: %s must start at 1", ErrSequenceGap, s.OrderRule)
		case !first && s.Seq != states[i-1].Seq+1:
			return fmt.Errorf("%w: %s follows #%d", ErrSequenceGap, s.OrderRule, states[i-1].Seq)
		}
	}
	return nil
}

// States returns the order slots in book order. Callers mutate them in place
// and call Save.
func (b *Book) States() []*model.OrderState { return b.states }

// Symbols lists distinct symbols in book order.
func (b *Book) Symbols() []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range b.states {
		if !seen[s.Symbol] {
			seen[s.Symbol] = true
			out = append(out, s.Symbol)
		}
	}
	return out
}

// PriorBuyPrice is the buy price of the nearest earlier slot in the same
// chain with an active buy leg, or zero for the first slot or when none is active.
func (b *Book) PriorBuyPrice(i int) decimal.Decimal {
	cur := b.states[i]
	if cur.Seq == 1 {
		return decimal.Zero
	}
	for j := i - 1; j >= 0; j-- {
		s := b.states[j]
		if s.Chain() == cur.Chain() && s.Buy.Placed() {
			return s.Buy.Price
		}
	}
	return decimal.Zero
}

// ClaimedIDs returns every broker order id held by any slot.
func (b *Book) ClaimedIDs() map[int64]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make(map[int64]bool)
	for _, s := range b.states {
		for _, id := range []int64{s.Buy.OrderID, s.Sell.OrderID} {
			if id != 0 {
				ids[id] = true
			}
		}
	}
	return ids
}

func (b *Book) headerLines() []string {
	if b.template == "" {
		return b.header
	}
	data, err := os.ReadFile(b.template)
	if err != nil {
		return b.header
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > HeaderLines {
		lines = lines[:HeaderLines]
	}
	return lines
}

// Save rewrites the file: header lines, then one record per slot.
func (b *Book) Save(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	header := b.headerLines()
	for i := 0; i < HeaderLines; i++ {
		if i < len(header) {
			sb.WriteString(header[i])
		}
		sb.WriteByte('\n')
	}
	for _, s := range b.states {
		line, err := Encode(s)
		if err != nil {
			return err
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(b.path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write order state: %w", err)
	}
	return b.clock.Sleep(ctx, b.ioDelay)
}
