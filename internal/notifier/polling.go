package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// pollWait is the long-poll hold requested from the Bot API.
const pollWait = 30 * time.Second

// CommandHandler answers one chat command. An empty reply sends nothing.
type CommandHandler func(command string) string

type update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling long-polls for commands until ctx ends.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	for ctx.Err() == nil {
		next, err := t.poll(ctx, offset, handler)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			t.log.WithError(err).Warn("telegram polling failed")
			_ = t.Clock.Sleep(ctx, 5*time.Second)
			continue
		}
		offset = next
	}
	t.log.Info("telegram polling stopped")
}

// poll handles one batch of updates and returns the next offset. Only
// messages from the configured chat are answered.
func (t *TelegramNotifier) poll(ctx context.Context, offset int, handler CommandHandler) (int, error) {
	resp, err := t.poller.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset":  strconv.Itoa(offset),
			"timeout": strconv.Itoa(int(pollWait.Seconds())),
		}).
		Get(t.endpoint("getUpdates"))
	if err != nil {
		return offset, fmt.Errorf("poll updates: %w", err)
	}
	if resp.IsError() {
		return offset, fmt.Errorf("poll updates: status %d", resp.StatusCode())
	}

	var batch struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.Unmarshal(resp.Body(), &batch); err != nil {
		return offset, fmt.Errorf("decode updates: %w", err)
	}

	for _, u := range batch.Result {
		offset = u.UpdateID + 1
		if u.Message == nil || strconv.FormatInt(u.Message.Chat.ID, 10) != t.ChatID {
			continue
		}
		cmd := strings.TrimSpace(u.Message.Text)
		if cmd == "" {
			continue
		}
		t.log.WithField("command", cmd).Info("command received")
		if reply := handler(cmd); reply != "" {
			if err := t.Send(ctx, reply); err != nil {
				t.log.WithError(err).Error("send reply")
			}
		}
	}
	return offset, nil
}
