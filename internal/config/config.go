package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Broker modes.
const (
	ModeLive  = "live"
	ModePaper = "paper"
)

// Config holds all application configuration.
type Config struct {
	Paths struct {
		DataDir           string `yaml:"data_dir"`
		ConfigDir         string `yaml:"config_dir"`
		OrderBook         string `yaml:"order_book"`
		HeaderTemplate    string `yaml:"header_template"`
		StopFile          string `yaml:"stop_file"`
		BuyGateFile       string `yaml:"buy_gate_file"`
		SchedulerStopFile string `yaml:"scheduler_stop_file"`
		Credentials       string `yaml:"credentials"`
	} `yaml:"paths"`
	Broker struct {
		Mode         string        `yaml:"mode"`
		BaseURL      string        `yaml:"base_url"`
		ConsumerKey  string        `yaml:"consumer_key"`
		Timeout      time.Duration `yaml:"timeout"`
		RequestDelay time.Duration `yaml:"request_delay"`
		IODelay      time.Duration `yaml:"io_delay"`
		MaxRetries   int           `yaml:"max_retries"`
		RetryDelay   time.Duration `yaml:"retry_delay"`
		AccessTTL    time.Duration `yaml:"access_ttl"`
		RefreshTTL   time.Duration `yaml:"refresh_ttl"`
	} `yaml:"broker"`
	// Accounts maps an alias used in the order book to a broker account number.
	Accounts map[string]string `yaml:"accounts"`
	Market   struct {
		Timezone    string   `yaml:"timezone"`
		CalendarMIC string   `yaml:"calendar_mic"`
		RegularOnly []string `yaml:"regular_only"`
		Cutoff      string   `yaml:"cutoff"`
	} `yaml:"market"`
	Schedule struct {
		Windows      []string      `yaml:"windows"`
		Runtime      time.Duration `yaml:"runtime"`
		TraderBinary string        `yaml:"trader_binary"`
		TraderArgs   []string      `yaml:"trader_args"`
	} `yaml:"schedule"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("BROKER_MODE"); v != "" {
		cfg.Broker.Mode = v
	}
	if v := os.Getenv("BROKER_BASE_URL"); v != "" {
		cfg.Broker.BaseURL = v
	}
	if v := os.Getenv("BROKER_CONSUMER_KEY"); v != "" {
		cfg.Broker.ConsumerKey = v
	}
	if v := os.Getenv("BROKER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Broker.MaxRetries = n
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "Data"
	}
	if c.Paths.ConfigDir == "" {
		c.Paths.ConfigDir = "Config"
	}
	inConfig := func(p *string, name string) {
		if *p == "" {
			*p = filepath.Join(c.Paths.ConfigDir, name)
		}
	}
	inConfig(&c.Paths.OrderBook, "OrderStatus.txt")
	inConfig(&c.Paths.StopFile, "Trade_Exit.txt")
	inConfig(&c.Paths.BuyGateFile, "PlaceBuyOrders.txt")
	inConfig(&c.Paths.SchedulerStopFile, "Scheduler_Exit.txt")
	inConfig(&c.Paths.Credentials, "tokens.yaml")

	if c.Broker.Mode == "" {
		c.Broker.Mode = ModeLive
	}
	if c.Broker.BaseURL == "" {
		c.Broker.BaseURL = "https://api.tdameritrade.com/v1"
	}
	if c.Broker.Timeout == 0 {
		c.Broker.Timeout = 30 * time.Second
	}
	if c.Broker.RequestDelay == 0 {
		c.Broker.RequestDelay = 500 * time.Millisecond
	}
	if c.Broker.IODelay == 0 {
		c.Broker.IODelay = 200 * time.Millisecond
	}
	if c.Broker.MaxRetries == 0 {
		c.Broker.MaxRetries = 5
	}
	if c.Broker.RetryDelay == 0 {
		c.Broker.RetryDelay = 2 * time.Second
	}
	if c.Broker.AccessTTL == 0 {
		c.Broker.AccessTTL = 30 * time.Minute
	}
	if c.Broker.RefreshTTL == 0 {
		c.Broker.RefreshTTL = 90 * 24 * time.Hour
	}

	if c.Market.Timezone == "" {
		c.Market.Timezone = "America/New_York"
	}
	if c.Market.CalendarMIC == "" {
		c.Market.CalendarMIC = "xnys"
	}
	if c.Market.Cutoff == "" {
		c.Market.Cutoff = "23:45"
	}

	if len(c.Schedule.Windows) == 0 {
		c.Schedule.Windows = []string{
			"0 30 7 * * 1-5",
			"0 0 9 * * 1-5",
			"0 0 12 * * 1-5",
			"0 30 15 * * 1-5",
		}
	}
	if c.Schedule.Runtime == 0 {
		c.Schedule.Runtime = 60 * time.Minute
	}
	if c.Schedule.TraderBinary == "" {
		c.Schedule.TraderBinary = "./trader"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(c.Paths.ConfigDir, "Trade_Log.txt")
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 10
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 90
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = filepath.Join(c.Paths.DataDir, "rsitrader.db")
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.Broker.Mode {
	case ModeLive:
		if c.Broker.ConsumerKey == "" {
			return fmt.Errorf("broker.consumer_key is required in live mode")
		}
	case ModePaper:
	default:
		return fmt.Errorf("broker.mode must be %q or %q, got %q", ModeLive, ModePaper, c.Broker.Mode)
	}
	if c.Broker.MaxRetries < 1 {
		return fmt.Errorf("broker.max_retries must be positive")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("accounts must map at least one alias")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, _, err := c.CutoffClock(); err != nil {
		return err
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// Location is the exchange time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market.timezone: %w", err)
	}
	return loc, nil
}

// CutoffClock parses market.cutoff as HH:MM.
func (c *Config) CutoffClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(c.Market.Cutoff))
	if err != nil {
		return 0, 0, fmt.Errorf("market.cutoff %q: want HH:MM", c.Market.Cutoff)
	}
	return t.Hour(), t.Minute(), nil
}

// TelegramEnabled reports whether alerts are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
