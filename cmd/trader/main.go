package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RSITrader/internal/broker"
	"RSITrader/internal/clock"
	"RSITrader/internal/collector"
	"RSITrader/internal/config"
	"RSITrader/internal/desk"
	"RSITrader/internal/history"
	"RSITrader/internal/logger"
	"RSITrader/internal/metrics"
	"RSITrader/internal/model"
	"RSITrader/internal/notifier"
	"RSITrader/internal/orderbook"
	"RSITrader/internal/recorder"
	"RSITrader/internal/session"
	"RSITrader/internal/trader"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfgPath := "Config/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	flag.StringVar(&cfgPath, "config", cfgPath, "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("config validation: %v", err)
	}

	base, closer, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
	})
	if err != nil {
		logrus.Fatalf("init logger: %v", err)
	}
	defer closer.Close()
	log := logger.Component(base, "main")

	if err := run(cfg, base, log); err != nil {
		log.WithError(err).Error("trader stopped with error")
		closer.Close()
		os.Exit(1)
	}
	log.Info("trader stopped")
}

func run(cfg *config.Config, base *logrus.Logger, log *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := metrics.Serve(cfg.Metrics.Addr)
		defer srv.Close()
		log.WithField("addr", cfg.Metrics.Addr).Info("metrics listening")
	}

	clk := clock.Real{}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	hour, minute, err := cfg.CutoffClock()
	if err != nil {
		return err
	}

	gw, err := newGateway(ctx, cfg, clk, base)
	if err != nil {
		return err
	}

	tracker, err := session.NewTracker(ctx, gw, clk.Now(), loc)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"open":  tracker.Hours().IsOpen,
		"phase": tracker.PhaseAt(clk.Now()).String(),
	}).Info("market hours loaded")

	book, err := orderbook.Load(cfg.Paths.OrderBook, cfg.Paths.HeaderTemplate, clk, cfg.Broker.IODelay)
	if err != nil {
		return err
	}
	store := history.NewStore(cfg.Paths.DataDir, clk, cfg.Broker.IODelay)
	d := desk.New(gw, tracker, clk, cfg.Accounts, cfg.Market.RegularOnly, cfg.Paths.BuyGateFile, logger.Component(base, "desk"))
	col := collector.New(book.Symbols(), gw, d, store, clk, loc, logger.Component(base, "collector"))

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger.Component(base, "recorder"))
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	var (
		tn *notifier.TelegramNotifier
		n  trader.Notifier
	)
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger.Component(base, "telegram"))
		n = tn
	}

	tr := trader.New(book, col, d, rec, n, clk, trader.Options{
		StopFile:     cfg.Paths.StopFile,
		BuyGateFile:  cfg.Paths.BuyGateFile,
		CutoffHour:   hour,
		CutoffMinute: minute,
		Location:     loc,
	}, logger.Component(base, "trader"))
	if tn != nil {
		go tn.StartPolling(ctx, tr.HandleCommand)
		log.Info("telegram polling started")
	}

	log.WithFields(logrus.Fields{
		"run":     tr.RunID(),
		"mode":    cfg.Broker.Mode,
		"symbols": len(book.Symbols()),
		"states":  len(book.States()),
	}).Info("trader starting")
	return tr.Run(ctx)
}

// newGateway builds the broker stack for the configured mode. Paper mode
// reads live market data when a consumer key is present and falls back to
// the exchange calendar otherwise.
func newGateway(ctx context.Context, cfg *config.Config, clk clock.Clock, base *logrus.Logger) (*broker.Gateway, error) {
	policy := broker.Policy{MaxRetries: cfg.Broker.MaxRetries, Delay: cfg.Broker.RetryDelay}
	gwLog := logger.Component(base, "broker")

	var (
		client *broker.Client
		tokens *broker.TokenManager
	)
	if cfg.Broker.ConsumerKey != "" {
		client = broker.NewClient(cfg.Broker.BaseURL, cfg.Broker.ConsumerKey, cfg.Broker.Timeout, cfg.Proxy)
		tm, err := broker.LoadTokenManager(cfg.Paths.Credentials, client, clk,
			cfg.Broker.AccessTTL, cfg.Broker.RefreshTTL, cfg.Broker.IODelay, logger.Component(base, "tokens"))
		if err != nil {
			return nil, err
		}
		if err := tm.Ensure(ctx); err != nil {
			return nil, err
		}
		client.SetTokens(tm)
		tokens = tm
	}

	if cfg.Broker.Mode == config.ModeLive {
		return broker.NewGateway(client, tokens, clk, policy, cfg.Broker.RequestDelay, gwLog), nil
	}

	cal := session.NewCalendar(cfg.Market.CalendarMIC)
	var hoursFn func(time.Time) model.MarketHours = cal.Hours
	if client == nil {
		return broker.NewGateway(broker.NewPaper(nil, hoursFn), nil, clk, policy, cfg.Broker.RequestDelay, gwLog), nil
	}
	return broker.NewGateway(broker.NewPaper(client, hoursFn), tokens, clk, policy, cfg.Broker.RequestDelay, gwLog), nil
}
