package retry

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solfarm/multisig-cli/pkg/retry/backoff"
)

func TestLimit(t *testing.T) {
	strategy := Limit(2)

	assert.True(t, strategy(1, errors.New("test")))
	assert.False(t, strategy(2, errors.New("test")))

	counter, err := Retry(func() error {
		return errors.New("test")
	}, Limit(2))

	assert.EqualError(t, err, "test")
	assert.Equal(t, uint(2), counter)
}

func TestRetriableErrors(t *testing.T) {
	retriable := []error{errors.New("retriableA"), errors.New("retriableB")}

	strategy := RetriableErrors(retriable...)
	for _, err := range retriable {
		assert.True(t, strategy(1, err))
		assert.True(t, strategy(1, errors.Wrap(err, "wrapper")))
	}
	assert.False(t, strategy(2, errors.New("unexpected")))
}

func TestNonRetriableErrors(t *testing.T) {
	nonRetriable := []error{errors.New("nonRetriableA"), errors.New("nonRetriableB")}

	strategy := NonRetriableErrors(nonRetriable...)
	for _, err := range nonRetriable {
		assert.False(t, strategy(1, err))
		assert.False(t, strategy(1, errors.Wrap(err, "wrapper")))
	}
	assert.True(t, strategy(1, errors.New("unexpected")))
}

func TestUntilDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	strategy := UntilDone(ctx)

	assert.True(t, strategy(1, errors.New("err")))
	cancel()
	assert.False(t, strategy(2, errors.New("err")))
}

func TestBackoff(t *testing.T) {
	ts := &testSleeper{}
	sleeperImpl = ts
	defer func() { sleeperImpl = &realSleeper{} }()

	strategy := Backoff(context.Background(), backoff.BinaryExponential(100*time.Millisecond), 300*time.Millisecond)
	for i := uint(1); i <= 4; i++ {
		assert.True(t, strategy(i, errors.New("test-error")))
	}

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}, ts.sleepTimes)
}

func TestBackoffWithJitter(t *testing.T) {
	iterations := 10000
	delay := time.Millisecond

	ts := &testSleeper{}
	sleeperImpl = ts
	defer func() { sleeperImpl = &realSleeper{} }()

	strategy := BackoffWithJitter(backoff.Constant(delay), delay, 0.1)
	for i := 0; i < iterations; i++ {
		assert.True(t, strategy(1, errors.New("err")))
	}

	// Total is iterations * delay, +/- the 10% jitter.
	assert.InDelta(t, float64(10*time.Second), float64(ts.Total()), float64(time.Second))
	assert.InDelta(t, float64(delay), float64(ts.Mean()), 0.1*float64(delay))

	// A uniform 10% window around the mean has a mean absolute deviation of 5%.
	assert.InDelta(t, 0.05*float64(delay), float64(ts.AbsDeviation()), 0.05*0.05*float64(delay))
}

func TestLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	failure := errors.New("unavailable")
	n, err := Retry(func() error { return failure },
		Limit(3),
		Logged(logger.WithField("type", "test"), "getBalance"),
	)
	assert.Equal(t, failure, err)
	assert.EqualValues(t, 3, n)

	// The final failure is vetoed by Limit before it reaches Logged.
	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	for i, entry := range entries {
		assert.Equal(t, logrus.DebugLevel, entry.Level)
		assert.Equal(t, "getBalance", entry.Data["operation"])
		assert.EqualValues(t, i+1, entry.Data["attempts"])
		assert.Equal(t, failure, entry.Data[logrus.ErrorKey])
	}
}

type testSleeper struct {
	sleepTimes []time.Duration
}

func (t *testSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	t.sleepTimes = append(t.sleepTimes, d)
	return ctx.Err() == nil
}

func (t *testSleeper) Total() (total time.Duration) {
	for _, d := range t.sleepTimes {
		total += d
	}
	return total
}

func (t *testSleeper) Mean() time.Duration {
	return time.Duration(int(t.Total()) / len(t.sleepTimes))
}

func (t *testSleeper) AbsDeviation() (dev time.Duration) {
	mean := t.Mean()
	for _, d := range t.sleepTimes {
		dev += time.Duration(math.Abs(float64(d) - float64(mean)))
	}
	return time.Duration(int(dev) / len(t.sleepTimes))
}
