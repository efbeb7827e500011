package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"RSITrader/internal/clock"
	"RSITrader/internal/config"
	"RSITrader/internal/logger"
	"RSITrader/internal/scheduler"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
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
		OutputFile: filepath.Join(cfg.Paths.ConfigDir, "Scheduler_Log.txt"),
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
	})
	if err != nil {
		logrus.Fatalf("init logger: %v", err)
	}
	defer closer.Close()
	log := logger.Component(base, "scheduler")

	if err := run(cfg, cfgPath, log); err != nil {
		log.WithError(err).Error("scheduler stopped with error")
		closer.Close()
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}

func run(cfg *config.Config, cfgPath string, log *logrus.Entry) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	launcher := scheduler.ExecLauncher{
		Binary: cfg.Schedule.TraderBinary,
		Args:   append([]string{"-config", cfgPath}, cfg.Schedule.TraderArgs...),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	sched := scheduler.NewScheduler(ctx, launcher, clock.Real{}, scheduler.Options{
		Windows:           cfg.Schedule.Windows,
		Runtime:           cfg.Schedule.Runtime,
		TraderStopFile:    cfg.Paths.StopFile,
		SchedulerStopFile: cfg.Paths.SchedulerStopFile,
		Location:          loc,
	}, log)
	if err := sched.RegisterAll(); err != nil {
		return err
	}

	log.WithField("windows", cfg.Schedule.Windows).Info("scheduler running")
	return sched.Run(ctx)
}
