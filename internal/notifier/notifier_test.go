package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"RSITrader/internal/clock"
	"RSITrader/internal/model"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeTelegram struct {
	mu      sync.Mutex
	sent    []map[string]string
	updates string
}

func (f *fakeTelegram) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			f.mu.Lock()
			f.sent = append(f.sent, payload)
			f.mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			w.Write([]byte(f.updates))
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestNotifier(t *testing.T, f *fakeTelegram) *TelegramNotifier {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "", quietLog())
	n.APIURL = srv.URL
	return n
}

func TestSend(t *testing.T) {
	f := &fakeTelegram{}
	n := newTestNotifier(t, f)
	require.NoError(t, n.Send(context.Background(), "hello"))
	require.Len(t, f.sent, 1)
	assert.Equal(t, "42", f.sent[0]["chat_id"])
	assert.Equal(t, "hello", f.sent[0]["text"])
	assert.Equal(t, "HTML", f.sent[0]["parse_mode"])
}

func TestSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()
	n := NewTelegramNotifier("TOKEN", "42", "", quietLog())
	n.APIURL = srv.URL
	err := n.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "bad token")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Notify(ctx, Alert, "x"), context.Canceled)
}

func TestNotifyRetryBudgetBySeverity(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "flood", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tests := []struct {
		sev      Severity
		attempts int32
		slept    time.Duration
	}{
		{Info, 3, 3 * time.Second},
		{Alert, 7, 126 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.sev.String(), func(t *testing.T) {
			hits.Store(0)
			clk := clock.NewFake(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
			n := NewTelegramNotifier("TOKEN", "42", "", quietLog())
			n.APIURL = srv.URL
			n.Clock = clk

			err := n.Notify(context.Background(), tt.sev, "run stopped")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "429")
			assert.Equal(t, tt.attempts, hits.Load())
			assert.Equal(t, tt.slept, clk.Slept())
		})
	}
}

func TestNotifyRecovers(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()
	clk := clock.NewFake(time.Now())
	n := NewTelegramNotifier("TOKEN", "42", "", quietLog())
	n.APIURL = srv.URL
	n.Clock = clk

	require.NoError(t, n.Notify(context.Background(), Info, "buy placed"))
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, time.Second, clk.Slept())
}

func TestPollDispatchesCommands(t *testing.T) {
	f := &fakeTelegram{updates: `{"ok":true,"result":[
		{"update_id":7,"message":{"text":" /status ","chat":{"id":42}}},
		{"update_id":8},
		{"update_id":9,"message":{"text":"/stop","chat":{"id":666}}},
		{"update_id":10,"message":{"text":"/noop","chat":{"id":42}}}]}`}
	n := newTestNotifier(t, f)

	var got []string
	next, err := n.poll(context.Background(), 0, func(cmd string) string {
		got = append(got, cmd)
		if cmd == "/status" {
			return "all good"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, 11, next)
	assert.Equal(t, []string{"/status", "/noop"}, got, "other chats are ignored")
	require.Len(t, f.sent, 1)
	assert.Equal(t, "all good", f.sent[0]["text"])
}

func TestFormatters(t *testing.T) {
	inds := []model.MarketIndicators{{Symbol: "SPY", RSI: model.RSISet{25.5, 30, 35, 40, 45, 50}, LastPrice: 512.3}}
	table := FormatIndicators(inds)
	lines := strings.Split(strings.TrimRight(table, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "SPY    25.50 30.00 35.00 40.00 45.00 50.00   512.30", lines[1])

	aggs := []model.SignalAggregate{{Symbol: "SPY", Period: "Weekly", BuyNow: true, BuyPct: 50}}
	agg := FormatAggregates(aggs)
	assert.Contains(t, agg, "SPY    Weekly          YES  -       50      0")

	status := FormatStatus(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), inds, aggs)
	assert.Contains(t, status, "<pre>")
	assert.Contains(t, status, "2026-03-10 10:00:00")

	s := model.OrderState{OrderRule: model.OrderRule{Symbol: "SPY", Period: "Weekly", Kind: model.KindSingle, Seq: 1}}
	s.Buy = model.Leg{OrderID: 1000000001, Shares: 2, Price: decimal.RequireFromString("507.1"), Status: "WORKING"}
	assert.Contains(t, FormatOrderEvent("placed", s, model.SideBuy), "2 @ 507.10 (id 1000000001, WORKING)")
	s.Buy.Status = model.StatusFilled
	assert.Contains(t, FormatOrderEvent("status", s, model.SideBuy), "filled")
	assert.Contains(t, FormatAbort(errors.New("a < b")), "a &lt; b")
}
