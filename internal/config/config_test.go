package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ModeLive, cfg.Broker.Mode)
	assert.Equal(t, filepath.Join("Config", "Trade_Exit.txt"), cfg.Paths.StopFile)
	assert.Equal(t, filepath.Join("Config", "OrderStatus.txt"), cfg.Paths.OrderBook)
	assert.Equal(t, 500*time.Millisecond, cfg.Broker.RequestDelay)
	assert.Equal(t, "23:45", cfg.Market.Cutoff)
	assert.Len(t, cfg.Schedule.Windows, 4)
	assert.Equal(t, time.Hour, cfg.Schedule.Runtime)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := writeConfig(t, `
broker:
  mode: paper
  request_delay: 250ms
  max_retries: 3
accounts:
  ira: "12345678"
market:
  regular_only: [BRK, OTCX]
  cutoff: "22:30"
schedule:
  runtime: 45m
telegram:
  chat_id: "99"
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "secret")
	t.Setenv("BROKER_MAX_RETRIES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModePaper, cfg.Broker.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Broker.RequestDelay)
	assert.Equal(t, 7, cfg.Broker.MaxRetries)
	assert.Equal(t, "12345678", cfg.Accounts["ira"])
	assert.Equal(t, []string{"BRK", "OTCX"}, cfg.Market.RegularOnly)
	assert.Equal(t, 45*time.Minute, cfg.Schedule.Runtime)
	assert.True(t, cfg.TelegramEnabled())

	h, m, err := cfg.CutoffClock()
	require.NoError(t, err)
	assert.Equal(t, 22, h)
	assert.Equal(t, 30, m)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.applyDefaults()
		cfg.Broker.Mode = ModePaper
		cfg.Accounts = map[string]string{"ira": "1"}
		return cfg
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"live without key", func(c *Config) { c.Broker.Mode = ModeLive }},
		{"unknown mode", func(c *Config) { c.Broker.Mode = "sandbox" }},
		{"no accounts", func(c *Config) { c.Accounts = nil }},
		{"bad timezone", func(c *Config) { c.Market.Timezone = "Mars/Olympus" }},
		{"bad cutoff", func(c *Config) { c.Market.Cutoff = "late" }},
		{"half telegram", func(c *Config) { c.Telegram.BotToken = "x" }},
		{"no retries", func(c *Config) { c.Broker.MaxRetries = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "broker: [unterminated"))
	assert.Error(t, err)
}
