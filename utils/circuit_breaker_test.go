package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errOutage = errors.New("provider unreachable")
	errParse  = errors.New("malformed payload")
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{
		FailureThreshold: threshold,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		MaxRequests:      1,
		IsFailure:        func(err error) bool { return errors.Is(err, errOutage) },
	}, nil)
	cb.now = clock.now
	return cb, clock
}

func run(cb *CircuitBreaker, err error) error {
	return cb.Execute(context.Background(), func(context.Context) error { return err })
}

func TestCircuitBreaker_Counting(t *testing.T) {
	tests := map[string]struct {
		errs      []error
		wantState CircuitBreakerState
		wantCount int
	}{
		"successes_stay_closed":        {errs: []error{nil, nil, nil}, wantState: StateClosed},
		"below_threshold":              {errs: []error{errOutage, errOutage}, wantState: StateClosed, wantCount: 2},
		"threshold_opens":              {errs: []error{errOutage, errOutage, errOutage}, wantState: StateOpen, wantCount: 3},
		"success_resets_count":         {errs: []error{errOutage, errOutage, nil, errOutage}, wantState: StateClosed, wantCount: 1},
		"uncounted_errors_are_ignored": {errs: []error{errParse, errParse, errParse, errParse}, wantState: StateClosed},
		"cancellation_is_ignored":      {errs: []error{context.Canceled, context.Canceled, context.Canceled}, wantState: StateClosed},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cb, _ := newTestBreaker(3)
			for _, err := range tc.errs {
				assert.ErrorIs(t, run(cb, err), err)
			}
			assert.Equal(t, tc.wantState, cb.GetState())
			assert.Equal(t, tc.wantCount, cb.GetStats().FailureCount)
		})
	}
}

func TestCircuitBreaker_OpenRejectsUntilTimeout(t *testing.T) {
	cb, clock := newTestBreaker(1)
	require.ErrorIs(t, run(cb, errOutage), errOutage)
	require.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.False(t, called)
	assert.Equal(t, int64(1), cb.GetStats().TotalRejections)

	clock.advance(time.Minute)
	assert.NoError(t, run(cb, nil))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1)
	require.ErrorIs(t, run(cb, errOutage), errOutage)

	clock.advance(2 * time.Minute)
	require.ErrorIs(t, run(cb, errOutage), errOutage)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.Equal(t, clock.t.Add(time.Minute), cb.GetStats().NextRetry)
	assert.ErrorIs(t, run(cb, nil), ErrCircuitBreakerOpen)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1)
	require.ErrorIs(t, run(cb, errOutage), errOutage)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, run(cb, nil))

	stats := cb.GetStats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.TotalFailures)
}
