package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy configures exponential backoff for a task whose attempts fail.
// Retries happen inside the task's round; the round barrier waits for them.
type RetryPolicy struct {
	MaxAttempts         int           // Total attempts including the first (default 3)
	InitialInterval     time.Duration // Initial retry interval (default 50ms)
	MaxInterval         time.Duration // Maximum retry interval (default 2s)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         3,
		InitialInterval:     50 * time.Millisecond,
		MaxInterval:         2 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.RandomizationFactor < 0 {
		p.RandomizationFactor = def.RandomizationFactor
	}
	return p
}

// invoke runs the body once, converting a panic into a Failed result.
func invoke(ctx context.Context, task *Task, facts FactView) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(fmt.Errorf("panic: %v", r))
		}
	}()

	res = task.Run(ctx, facts)
	if res.Kind == ResultFailed && res.Err == nil {
		res.Err = errNoReason
	}
	return res
}

// runAttempts runs the body, retrying Failed attempts per the task's policy.
// Returns the last result and how many times the body ran.
func runAttempts(ctx context.Context, task *Task, facts FactView) (Result, int) {
	if task.Retry == nil {
		return invoke(ctx, task, facts), 1
	}
	p := task.Retry.withDefaults()

	var res Result
	attempts := 0
	operation := func() error {
		attempts++
		res = invoke(ctx, task, facts)
		if res.Kind == ResultFailed {
			return res.Err
		}
		// Finished and RunAgain both end the retry loop
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.InitialInterval
	policy.MaxInterval = p.MaxInterval
	policy.Multiplier = p.Multiplier
	policy.RandomizationFactor = p.RandomizationFactor
	policy.MaxElapsedTime = 0 // Bounded by MaxAttempts instead

	bounded := backoff.WithMaxRetries(policy, uint64(p.MaxAttempts-1))

	// The error is already captured in res; Retry's return adds nothing
	_ = backoff.Retry(operation, backoff.WithContext(bounded, ctx))
	return res, attempts
}
