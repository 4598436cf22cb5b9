// Package backoff computes the delay between retry attempts.
package backoff

import (
	"math"
	"time"
)

// Strategy maps the number of attempts made so far, starting at 1, to the
// delay before the next one.
type Strategy func(attempts uint) time.Duration

// Constant waits interval between every attempt.
func Constant(interval time.Duration) Strategy {
	return func(uint) time.Duration {
		return interval
	}
}

// Exponential waits baseDelay after the first attempt and multiplies the
// delay by base after each further one. Delays that overflow a
// time.Duration saturate.
func Exponential(baseDelay time.Duration, base float64) Strategy {
	return func(attempts uint) time.Duration {
		if attempts == 0 {
			attempts = 1
		}

		delay := float64(baseDelay) * math.Pow(base, float64(attempts-1))
		if math.IsNaN(delay) || delay < 0 || delay >= math.MaxInt64 {
			return math.MaxInt64
		}
		return time.Duration(delay)
	}
}

// BinaryExponential doubles the delay after every attempt.
func BinaryExponential(baseDelay time.Duration) Strategy {
	return Exponential(baseDelay, 2)
}
