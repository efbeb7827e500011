// Package scheduler launches the trader process in fixed daily windows and
// stops it again by arming the trader's stop file.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"RSITrader/internal/clock"
	"RSITrader/internal/flagfile"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Process is a launched trader.
type Process interface {
	Wait() error
}

// Launcher starts one trader process.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// ExecLauncher runs the trader binary. The child is not tied to ctx so it
// can finish its cycle and persist state after the stop file is armed.
type ExecLauncher struct {
	Binary string
	Args   []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

func (l ExecLauncher) Launch(_ context.Context) (Process, error) {
	cmd := exec.Command(l.Binary, l.Args...)
	cmd.Dir = l.Dir
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.Binary, err)
	}
	return cmd, nil
}

// Options configure the launch windows.
type Options struct {
	Windows           []string // cron specs with seconds, exchange time
	Runtime           time.Duration
	Poll              time.Duration
	TraderStopFile    string
	SchedulerStopFile string
	Location          *time.Location
}

// Scheduler manages the launch windows.
type Scheduler struct {
	Cron     *cron.Cron
	launcher Launcher
	clock    clock.Clock
	opts     Options
	log      *logrus.Entry
	ctx      context.Context
}

// NewScheduler creates a Scheduler. Overlapping windows are skipped while a
// previous window is still running.
func NewScheduler(ctx context.Context, launcher Launcher, clk clock.Clock, opts Options, log *logrus.Entry) *Scheduler {
	if opts.Poll <= 0 {
		opts.Poll = time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	cl := cronLogger{log}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(opts.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		launcher: launcher,
		clock:    clk,
		opts:     opts,
		log:      log,
		ctx:      ctx,
	}
}

// RegisterAll registers one job per window.
func (s *Scheduler) RegisterAll() error {
	for _, spec := range s.opts.Windows {
		if _, err := s.Cron.AddFunc(spec, func() {
			if err := s.RunWindow(s.ctx); err != nil {
				s.log.WithError(err).WithField("window", spec).Error("trading window failed")
			}
		}); err != nil {
			return fmt.Errorf("register window %q: %w", spec, err)
		}
	}
	return nil
}

// RunWindow launches the trader, lets it run for the configured runtime,
// then arms its stop file and waits for it to exit.
func (s *Scheduler) RunWindow(ctx context.Context) error {
	if flagfile.Exists(s.opts.SchedulerStopFile) {
		s.log.Info("scheduler stop file present, window skipped")
		return nil
	}
	if _, err := flagfile.Disarm(s.opts.TraderStopFile); err != nil {
		return err
	}

	p, err := s.launcher.Launch(ctx)
	if err != nil {
		return err
	}
	s.log.WithField("runtime", s.opts.Runtime).Info("trader launched")

	exited := make(chan error, 1)
	go func() { exited <- p.Wait() }()

	var early error
	done := false
	for left := s.opts.Runtime; left > 0 && !done; left -= s.opts.Poll {
		select {
		case early = <-exited:
			done = true
			s.log.WithError(early).Warn("trader exited before its window closed")
			continue
		default:
		}
		if flagfile.Exists(s.opts.SchedulerStopFile) {
			s.log.Info("scheduler stop file present, stopping trader early")
			break
		}
		if err := s.clock.Sleep(ctx, min(s.opts.Poll, left)); err != nil {
			break
		}
	}

	if err := flagfile.Arm(s.opts.TraderStopFile); err != nil {
		return err
	}
	if done {
		return early
	}
	s.log.Info("trader stop file armed, waiting for exit")
	if err := <-exited; err != nil {
		return fmt.Errorf("trader exited: %w", err)
	}
	s.log.Info("trader exited")
	return nil
}

// Run starts the windows and blocks until the scheduler stop file appears or
// ctx ends. The stop file is disarmed on the way out.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Cron.Start()
	s.log.WithField("windows", len(s.Cron.Entries())).Info("scheduler started")
	defer func() {
		<-s.Cron.Stop().Done()
		s.log.Info("scheduler stopped")
	}()

	for {
		if flagfile.Exists(s.opts.SchedulerStopFile) {
			if _, err := flagfile.Disarm(s.opts.SchedulerStopFile); err != nil {
				return err
			}
			return nil
		}
		if err := s.clock.Sleep(ctx, s.opts.Poll); err != nil {
			return nil
		}
	}
}

// cronLogger routes cron's logging to logrus.
type cronLogger struct{ log *logrus.Entry }

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.log.WithFields(fields(kv)).Debug("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.log.WithFields(fields(kv)).WithError(err).Error("cron: " + msg)
}
