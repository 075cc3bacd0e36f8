package errors

import (
	"context"
	"time"
)

// Sleeper suspends the calling goroutine for d or until ctx is done.
// It returns ctx.Err() when interrupted.
type Sleeper func(ctx context.Context, d time.Duration) error

// TimerSleep is the default Sleeper. It parks only the calling goroutine.
func TimerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy is an exponential backoff policy without jitter:
// retry n (0-based) waits BaseDelay * 2^n.
type Policy struct {
	// MaxRetries is the number of retries allowed after the first attempt.
	MaxRetries int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// Sleep performs the wait. Nil means TimerSleep.
	Sleep Sleeper
}

// DefaultPolicy retries transient failures three times after 1s, 2s and 4s.
var DefaultPolicy = Policy{
	MaxRetries: 3,
	BaseDelay:  time.Second,
}

// Decision is the outcome of evaluating a failure against a Policy.
type Decision struct {
	// Retry is true when another attempt should be made.
	Retry bool

	// Delay is the wait before that attempt. Zero when Retry is false.
	Delay time.Duration

	// Category is the failure's classification.
	Category Category
}

// Delay returns the backoff before retry number retryCount (0-based).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	return p.BaseDelay << retryCount
}

// Decide evaluates a failure of category cat given the retries already spent.
func (p Policy) Decide(cat Category, retryCount int) Decision {
	if cat != CategoryTransient || retryCount >= p.MaxRetries {
		return Decision{Category: cat}
	}
	return Decision{Retry: true, Delay: p.Delay(retryCount), Category: cat}
}

// Wait sleeps for d using the policy's Sleeper.
func (p Policy) Wait(ctx context.Context, d time.Duration) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = TimerSleep
	}
	return sleep(ctx, d)
}

// WithSleeper returns a copy of p that waits with s.
func (p Policy) WithSleeper(s Sleeper) Policy {
	p.Sleep = s
	return p
}
