package recorder

import (
	"database/sql"
	"fmt"
	"sync"

	"RSITrader/internal/model"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists cycles and order events to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logrus.Entry
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *logrus.Entry) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the trader writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT NOT NULL,
			rsi_week    REAL,
			rsi_day     REAL,
			rsi_4hr     REAL,
			rsi_1hr     REAL,
			rsi_30min   REAL,
			rsi_15min   REAL,
			last_price  REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_symbol ON cycles(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS order_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL,
			timestamp  INTEGER NOT NULL,
			order_key  TEXT NOT NULL,
			side       TEXT,
			event      TEXT,
			order_id   INTEGER,
			shares     INTEGER,
			price      TEXT,
			status     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_key ON order_events(order_key, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordCycle(c *Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rsi := c.Indicators.RSI
	_, err := r.db.Exec(`INSERT INTO cycles
		(run_id, timestamp, symbol, rsi_week, rsi_day, rsi_4hr, rsi_1hr, rsi_30min, rsi_15min, last_price)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.RunID, c.At.Unix(), c.Indicators.Symbol,
		rsi[model.HorizonWeek], rsi[model.HorizonDay], rsi[model.HorizonFourHour],
		rsi[model.HorizonOneHour], rsi[model.HorizonThirtyMinute], rsi[model.HorizonFifteenMinute],
		c.Indicators.LastPrice,
	)
	return err
}

func (r *SQLiteRecorder) RecordOrderEvent(evt *OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO order_events
		(run_id, timestamp, order_key, side, event, order_id, shares, price, status)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		evt.RunID, evt.At.Unix(), evt.Key, evt.Side.String(), evt.Event,
		evt.OrderID, evt.Shares, evt.Price.StringFixed(2), evt.Status,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
