// Package retry runs an action again while a set of strategies allows it.
package retry

// Action is one attempt of a retried operation.
type Action func() error

// Retrier runs actions under a fixed set of strategies.
type Retrier interface {
	Retry(action Action) (uint, error)
}

type retrier struct {
	strategies []Strategy
}

// NewRetrier returns a Retrier bound to strategies. Without strategies every
// failure is retried immediately.
func NewRetrier(strategies ...Strategy) Retrier {
	return &retrier{
		strategies: strategies,
	}
}

func (r *retrier) Retry(action Action) (uint, error) {
	return Retry(action, r.strategies...)
}

// Retry runs action until it returns nil or a strategy vetoes another
// attempt, and reports the number of attempts made with the final error.
//
// Strategies are consulted in order and the first veto wins, so strategies
// that sleep or log belong at the end.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		attempts++

		err := action()
		if err == nil || !allowed(strategies, attempts, err) {
			return attempts, err
		}
	}
}

func allowed(strategies []Strategy, attempts uint, err error) bool {
	for _, s := range strategies {
		if !s(attempts, err) {
			return false
		}
	}
	return true
}
