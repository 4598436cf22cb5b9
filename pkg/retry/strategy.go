package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solfarm/multisig-cli/pkg/retry/backoff"
)

// Strategy is a function that determines whether or not an action should be
// retried. Strategies are allowed to delay or cause other side effects.
type Strategy func(attempts uint, err error) bool

// Limit returns a strategy that limits the total number of attempts.
// maxAttempts should be >= 1, since the action is evaluated first.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, err error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors returns a strategy that specifies which errors can be retried.
func RetriableErrors(retriableErrors ...error) Strategy {
	return func(attempts uint, err error) bool {
		for _, e := range retriableErrors {
			if errors.Is(err, e) {
				return true
			}
		}

		return false
	}
}

// NonRetriableErrors returns a strategy that specifies which errors should not be retried.
func NonRetriableErrors(nonRetriableErrors ...error) Strategy {
	return func(attempts uint, err error) bool {
		for _, e := range nonRetriableErrors {
			if errors.Is(err, e) {
				return false
			}
		}

		return true
	}
}

// UntilDone returns a strategy that stops retrying once ctx is done.
func UntilDone(ctx context.Context) Strategy {
	return func(attempts uint, err error) bool {
		return ctx.Err() == nil
	}
}

// Logged returns a strategy that records each retried failure at debug
// level. It never vetoes, so it should follow the strategies that can.
func Logged(log *logrus.Entry, operation string) Strategy {
	return func(attempts uint, err error) bool {
		log.WithError(err).WithFields(logrus.Fields{
			"operation": operation,
			"attempts":  attempts,
		}).Debug("retrying after failure")
		return true
	}
}

// Backoff returns a strategy that sleeps before the next attempt. The sleep is
// cut short, and no further attempt is made, when ctx is done.
func Backoff(ctx context.Context, strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return func(attempts uint, err error) bool {
		return sleeperImpl.Sleep(ctx, capped(strategy(attempts), maxBackoff))
	}
}

// BackoffWithJitter returns a strategy similar to Backoff, but induces a jitter
// on the total delay. The maxBackoff is calculated before the jitter.
//
// The jitter parameter is a percentage of the capped delay. A capped delay of
// 100ms with a jitter of 0.1 results in a delay of 100ms +/- 10ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(attempts uint, err error) bool {
		delay := capped(strategy(attempts), maxBackoff)
		withJitter := time.Duration(float64(delay) * (1 + (rand.Float64()*jitter*2 - jitter)))
		return sleeperImpl.Sleep(context.Background(), withJitter)
	}
}

func capped(delay, maxBackoff time.Duration) time.Duration {
	return time.Duration(math.Min(float64(maxBackoff), float64(delay)))
}

type sleeper interface {
	// Sleep blocks for d and reports false if ctx finished first.
	Sleep(ctx context.Context, d time.Duration) bool
}

type realSleeper struct{}

func (r *realSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var sleeperImpl sleeper = &realSleeper{}
