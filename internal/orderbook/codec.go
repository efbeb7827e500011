package orderbook

import (
	"fmt"
	"strconv"
	"strings"

	"RSITrader/internal/model"

	"github.com/shopspring/decimal"
)

// column is one fixed-width field. Fields are separated by a single space, so
// a column's offset is the sum of the preceding widths plus separators.
type column struct {
	name  string
	width int
	left  bool
	get   func(s *model.OrderState) string
	set   func(s *model.OrderState, v string) error
}

type segment struct {
	start   int
	columns []column
}

var (
	ruleSegment segment
	buySegment  segment
	sellSegment segment
)

func init() {
	pos := 0
	place := func(cols []column) segment {
		seg := segment{start: pos, columns: cols}
		for _, c := range cols {
			pos += c.width + 1
		}
		return seg
	}
	ruleSegment = place(ruleColumns())
	buySegment = place(legColumns(model.SideBuy))
	sellSegment = place(legColumns(model.SideSell))
}

func parseInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func parseFloat(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

func rsiColumns(prefix string, ref func(s *model.OrderState) *model.Thresholds) []column {
	cols := make([]column, 0, model.HorizonCount)
	for _, h := range model.Horizons {
		cols = append(cols, column{
			name:  prefix + "_rsi_" + h.String(),
			width: 3,
			get:   func(s *model.OrderState) string { return strconv.Itoa(ref(s)[h]) },
			set: func(s *model.OrderState, v string) (err error) {
				ref(s)[h], err = parseInt(v)
				return err
			},
		})
	}
	return cols
}

func ruleColumns() []column {
	cols := []column{
		{name: "symbol", width: 5, left: true,
			get: func(s *model.OrderState) string { return s.Symbol },
			set: func(s *model.OrderState, v string) error { s.Symbol = v; return nil }},
		{name: "period", width: 15, left: true,
			get: func(s *model.OrderState) string { return s.Period },
			set: func(s *model.OrderState, v string) error { s.Period = v; return nil }},
		{name: "kind", width: 11, left: true,
			get: func(s *model.OrderState) string { return s.Kind.String() },
			set: func(s *model.OrderState, v string) (err error) { s.Kind, err = model.ParseOrderKind(v); return err }},
		{name: "account", width: 30, left: true,
			get: func(s *model.OrderState) string { return s.Account },
			set: func(s *model.OrderState, v string) error { s.Account = v; return nil }},
		{name: "seq", width: 3,
			get: func(s *model.OrderState) string { return strconv.Itoa(s.Seq) },
			set: func(s *model.OrderState, v string) (err error) { s.Seq, err = parseInt(v); return err }},
		// stored per mille
		{name: "buy_gap", width: 5,
			get: func(s *model.OrderState) string { return fmt.Sprintf("%.3f", s.BuyGap*1000) },
			set: func(s *model.OrderState, v string) error {
				f, err := parseFloat(v)
				s.BuyGap = f / 1000
				return err
			}},
	}
	cols = append(cols, rsiColumns("buy", func(s *model.OrderState) *model.Thresholds { return &s.BuyRSI })...)
	cols = append(cols, column{name: "buy_adj", width: 5,
		get: func(s *model.OrderState) string { return fmt.Sprintf("%.3f", s.BuyAdjust) },
		set: func(s *model.OrderState, v string) (err error) { s.BuyAdjust, err = parseFloat(v); return err }})
	cols = append(cols, rsiColumns("sell", func(s *model.OrderState) *model.Thresholds { return &s.SellRSI })...)
	cols = append(cols,
		column{name: "sell_adj", width: 5,
			get: func(s *model.OrderState) string { return fmt.Sprintf("%.3f", s.SellAdjust) },
			set: func(s *model.OrderState, v string) (err error) { s.SellAdjust, err = parseFloat(v); return err }},
		column{name: "notional", width: 6,
			get: func(s *model.OrderState) string { return fmt.Sprintf("%.0f", s.Notional) },
			set: func(s *model.OrderState, v string) (err error) { s.Notional, err = parseFloat(v); return err }},
	)
	return cols
}

func legColumns(side model.Side) []column {
	prefix := strings.ToLower(side.String())
	leg := func(s *model.OrderState) *model.Leg { return s.Leg(side) }
	cols := rsiColumns(prefix+"_leg", func(s *model.OrderState) *model.Thresholds { return &leg(s).RSI })
	return append(cols,
		column{name: prefix + "_order_id", width: 10,
			get: func(s *model.OrderState) string { return strconv.FormatInt(leg(s).OrderID, 10) },
			set: func(s *model.OrderState, v string) (err error) {
				if v == "" {
					return nil
				}
				leg(s).OrderID, err = strconv.ParseInt(v, 10, 64)
				return err
			}},
		column{name: prefix + "_shares", width: 6,
			get: func(s *model.OrderState) string { return strconv.Itoa(leg(s).Shares) },
			set: func(s *model.OrderState, v string) (err error) { leg(s).Shares, err = parseInt(v); return err }},
		column{name: prefix + "_price", width: 9,
			get: func(s *model.OrderState) string { return leg(s).Price.StringFixed(2) },
			set: func(s *model.OrderState, v string) (err error) {
				if v == "" {
					leg(s).Price = decimal.Zero
					return nil
				}
				leg(s).Price, err = decimal.NewFromString(v)
				return err
			}},
		column{name: prefix + "_status", width: 10, left: true,
			get: func(s *model.OrderState) string { return leg(s).Status },
			set: func(s *model.OrderState, v string) error { leg(s).Status = v; return nil }},
	)
}

func (seg segment) encode(b *strings.Builder, s *model.OrderState) error {
	for _, c := range seg.columns {
		v := c.get(s)
		if len(v) > c.width {
			return fmt.Errorf("%s: %q exceeds width %d", c.name, v, c.width)
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if c.left {
			fmt.Fprintf(b, "%-*s", c.width, v)
		} else {
			fmt.Fprintf(b, "%*s", c.width, v)
		}
	}
	return nil
}

func (seg segment) decode(line string, s *model.OrderState) error {
	pos := seg.start
	for _, c := range seg.columns {
		raw := ""
		if pos < len(line) {
			raw = line[pos:min(pos+c.width, len(line))]
		}
		if err := c.set(s, strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%s at column %d: %w", c.name, pos, err)
		}
		pos += c.width + 1
	}
	return nil
}

// blank reports whether the line has no content from the segment start on.
func (seg segment) blank(line string) bool {
	return seg.start >= len(line) || strings.TrimSpace(line[seg.start:]) == ""
}

// Encode renders an order state as one fixed-width record. Leg columns are
// written only for legs that have been placed.
func Encode(s *model.OrderState) (string, error) {
	var b strings.Builder
	if err := ruleSegment.encode(&b, s); err != nil {
		return "", fmt.Errorf("encode %s: %w", s.OrderRule, err)
	}
	if s.Buy.Placed() {
		if err := buySegment.encode(&b, s); err != nil {
			return "", fmt.Errorf("encode %s: %w", s.OrderRule, err)
		}
		if s.Sell.Placed() {
			if err := sellSegment.encode(&b, s); err != nil {
				return "", fmt.Errorf("encode %s: %w", s.OrderRule, err)
			}
		}
	}
	return strings.TrimRight(b.String(), " "), nil
}

// Decode parses one fixed-width record.
func Decode(line string) (*model.OrderState, error) {
	s := &model.OrderState{}
	if err := ruleSegment.decode(line, s); err != nil {
		return nil, err
	}
	if s.Symbol == "" || s.Period == "" {
		return nil, fmt.Errorf("record missing symbol or period: %q", line)
	}
	for _, seg := range []segment{buySegment, sellSegment} {
		if seg.blank(line) {
			break
		}
		if err := seg.decode(line, s); err != nil {
			return nil, fmt.Errorf("%s: %w", s.OrderRule, err)
		}
	}
	return s, nil
}
