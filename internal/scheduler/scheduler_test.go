package scheduler

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"RSITrader/internal/clock"
	"RSITrader/internal/flagfile"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakeTrader exits once its stop file is armed, or immediately when quick is set.
type fakeTrader struct {
	stopFile string
	quick    error
	exit     bool
}

func (p *fakeTrader) Wait() error {
	if p.exit {
		return p.quick
	}
	for !flagfile.Exists(p.stopFile) {
		time.Sleep(time.Millisecond)
	}
	return nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	launches int
	proc     *fakeTrader
	err      error
}

func (l *fakeLauncher) Launch(context.Context) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.launches++
	return l.proc, nil
}

func setup(t *testing.T) (*Scheduler, *fakeLauncher, *clock.Fake, Options) {
	dir := t.TempDir()
	opts := Options{
		Windows:           []string{"0 30 7 * * 1-5", "0 0 9 * * 1-5"},
		Runtime:           60 * time.Minute,
		Poll:              time.Minute,
		TraderStopFile:    filepath.Join(dir, "Trade_Exit.txt"),
		SchedulerStopFile: filepath.Join(dir, "Scheduler_Exit.txt"),
	}
	clk := clock.NewFake(time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC))
	l := &fakeLauncher{proc: &fakeTrader{stopFile: opts.TraderStopFile}}
	return NewScheduler(context.Background(), l, clk, opts, quietLog()), l, clk, opts
}

func TestRunWindowLifecycle(t *testing.T) {
	s, l, clk, opts := setup(t)
	require.NoError(t, flagfile.Arm(opts.TraderStopFile))

	require.NoError(t, s.RunWindow(context.Background()))
	assert.Equal(t, 1, l.launches)
	assert.True(t, flagfile.Exists(opts.TraderStopFile), "stop file armed after the window")
	assert.False(t, flagfile.Exists(flagfile.Disarmed(opts.TraderStopFile)))
	assert.Equal(t, 60*time.Minute, clk.Slept())
}

func TestRunWindowSkippedWhenSchedulerStopping(t *testing.T) {
	s, l, _, opts := setup(t)
	require.NoError(t, flagfile.Create(opts.SchedulerStopFile))

	require.NoError(t, s.RunWindow(context.Background()))
	assert.Zero(t, l.launches)
}

func TestRunWindowEarlyExit(t *testing.T) {
	s, l, _, opts := setup(t)
	boom := errors.New("exit status 1")
	l.proc = &fakeTrader{exit: true, quick: boom}

	assert.ErrorIs(t, s.RunWindow(context.Background()), boom)
	assert.True(t, flagfile.Exists(opts.TraderStopFile))
}

func TestRunWindowLaunchFailure(t *testing.T) {
	s, l, _, _ := setup(t)
	l.err = errors.New("no such binary")
	assert.Error(t, s.RunWindow(context.Background()))
}

func TestRegisterAll(t *testing.T) {
	s, _, _, _ := setup(t)
	require.NoError(t, s.RegisterAll())
	assert.Len(t, s.Cron.Entries(), 2)

	s.opts.Windows = []string{"not a cron spec"}
	assert.Error(t, s.RegisterAll())
}

func TestRunExitsOnStopFile(t *testing.T) {
	s, _, _, opts := setup(t)
	require.NoError(t, s.RegisterAll())
	require.NoError(t, flagfile.Create(opts.SchedulerStopFile))

	require.NoError(t, s.Run(context.Background()))
	assert.False(t, flagfile.Exists(opts.SchedulerStopFile))
	assert.True(t, flagfile.Exists(flagfile.Disarmed(opts.SchedulerStopFile)))
}

func TestRunExitsOnCancel(t *testing.T) {
	s, _, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}
