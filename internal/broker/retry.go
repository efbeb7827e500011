package broker

import (
	"context"
	"time"
)

// Sleeper pauses between attempts; clock.Clock satisfies it.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Policy bounds how often a call is retried and how long to wait between tries.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
}

// Outcome is the terminal state of a retried call.
type Outcome int

const (
	Succeeded Outcome = iota
	Exhausted
)

func (o Outcome) String() string {
	if o == Succeeded {
		return "succeeded"
	}
	return "exhausted"
}

// Result reports how a retried call ended. Err holds the last failure.
type Result struct {
	Outcome  Outcome
	Attempts int
	Err      error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Outcome == Succeeded }

// Retry runs op until it succeeds or MaxRetries retries have failed.
// It never decides fatality; the caller inspects the Result.
func Retry(ctx context.Context, s Sleeper, p Policy, op func(ctx context.Context) error) Result {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return Result{Outcome: Succeeded, Attempts: attempt}
		}
		if attempt > p.MaxRetries || ctx.Err() != nil {
			return Result{Outcome: Exhausted, Attempts: attempt, Err: err}
		}
		if serr := s.Sleep(ctx, p.Delay); serr != nil {
			return Result{Outcome: Exhausted, Attempts: attempt, Err: err}
		}
	}
}
