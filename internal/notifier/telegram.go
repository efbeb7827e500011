package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"RSITrader/internal/clock"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// DefaultAPIURL is the Telegram Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// Severity sets how hard a message is pushed before giving up.
type Severity int

const (
	// Info covers order placements, status changes and slot resets.
	Info Severity = iota
	// Alert covers aborted runs.
	Alert
)

func (s Severity) String() string {
	if s == Alert {
		return "alert"
	}
	return "info"
}

type delivery struct {
	retries int
	backoff time.Duration // first wait, doubled after every failure
}

var deliveries = map[Severity]delivery{
	Info:  {retries: 2, backoff: time.Second},
	Alert: {retries: 6, backoff: 2 * time.Second},
}

// TelegramNotifier sends messages to one chat and answers its commands.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIURL   string
	Clock    clock.Clock

	http   *resty.Client
	poller *resty.Client
	log    *logrus.Entry
}

func newHTTP(timeout time.Duration, proxy string) *resty.Client {
	hc := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if proxy != "" {
		hc.SetProxy(proxy)
	}
	return hc
}

// NewTelegramNotifier creates a notifier. proxy may be empty.
func NewTelegramNotifier(botToken, chatID, proxy string, log *logrus.Entry) *TelegramNotifier {
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		APIURL:   DefaultAPIURL,
		Clock:    clock.Real{},
		http:     newHTTP(15*time.Second, proxy),
		poller:   newHTTP(pollWait+5*time.Second, proxy),
		log:      log,
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimSuffix(t.APIURL, "/"), t.BotToken, method)
}

// Send posts text to the chat once.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.ChatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post(t.endpoint("sendMessage"))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// Notify delivers text within the retry budget of sev.
func (t *TelegramNotifier) Notify(ctx context.Context, sev Severity, text string) error {
	d := deliveries[sev]
	wait := d.backoff
	var err error
	for attempt := 1; attempt <= d.retries+1; attempt++ {
		if err = t.Send(ctx, text); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.log.WithFields(logrus.Fields{"severity": sev.String(), "attempt": attempt, "of": d.retries + 1}).WithError(err).Warn("telegram send failed")
		if attempt > d.retries {
			break
		}
		if serr := t.Clock.Sleep(ctx, wait); serr != nil {
			return serr
		}
		wait *= 2
	}
	return fmt.Errorf("%s undelivered after %d attempts: %w", sev, d.retries+1, err)
}
