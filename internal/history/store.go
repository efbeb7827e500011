package history

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"RSITrader/internal/clock"
	"RSITrader/internal/model"
)

// Store reads and writes one fixed-width price file per symbol.
type Store struct {
	dir     string
	clock   clock.Clock
	ioDelay time.Duration
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, clk clock.Clock, ioDelay time.Duration) *Store {
	return &Store{dir: dir, clock: clk, ioDelay: ioDelay}
}

// Path is the price file for symbol.
func (s *Store) Path(symbol string) string {
	return filepath.Join(s.dir, "Stock_"+symbol+".txt")
}

// FormatPoint renders a point as "timestamp(15) price(15, 6dp) resolution(10)".
func FormatPoint(p model.PricePoint) string {
	return fmt.Sprintf("%15d %15.6f %10d", p.Timestamp, p.Price, int(p.Resolution))
}

// ParsePoint reads a line written by FormatPoint.
func ParsePoint(line string) (model.PricePoint, error) {
	f := strings.Fields(line)
	if len(f) != 3 {
		return model.PricePoint{}, fmt.Errorf("price line %q: want 3 fields, got %d", line, len(f))
	}
	ts, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("price line timestamp: %w", err)
	}
	price, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("price line price: %w", err)
	}
	res, err := strconv.Atoi(f[2])
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("price line resolution: %w", err)
	}
	return model.PricePoint{Timestamp: ts, Price: price, Resolution: model.Resolution(res)}, nil
}

// Load returns the stored points and the file's modification time.
// A missing file yields no points and a zero time.
func (s *Store) Load(symbol string) ([]model.PricePoint, time.Time, error) {
	path := s.Path(symbol)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}

	var pts []model.PricePoint
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		p, err := ParsePoint(line)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		pts = append(pts, p)
	}
	if err := sc.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("read %s: %w", path, err)
	}
	return pts, info.ModTime(), nil
}

// Save rewrites the symbol's file in full, then waits for the IO delay.
func (s *Store) Save(ctx context.Context, symbol string, pts []model.PricePoint) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	var b strings.Builder
	for _, p := range pts {
		b.WriteString(FormatPoint(p))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.Path(symbol), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write %s: %w", s.Path(symbol), err)
	}
	return s.clock.Sleep(ctx, s.ioDelay)
}
