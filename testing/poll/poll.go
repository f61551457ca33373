// Package poll retries an operation at a fixed interval until it succeeds, a stop
// predicate holds, or a time budget runs out.
package poll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gotest.tools/v3/assert"
)

// DefaultInterval is the pause between attempts.
const DefaultInterval = time.Second

// ErrBudgetExhausted matches any *BudgetError.
var ErrBudgetExhausted = errors.New("retry budget exhausted")

var errConditionNotMet = errors.New("condition not met")

// BudgetError is returned when the budget elapsed before the operation succeeded.
// It unwraps to the failure of the last attempt.
type BudgetError struct {
	Budget   time.Duration
	Attempts int
	Err      error
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s: %s budget spent over %d attempt(s), last error: %v",
		ErrBudgetExhausted, e.Budget, e.Attempts, e.Err)
}

func (e *BudgetError) Unwrap() error {
	return e.Err
}

func (e *BudgetError) Is(target error) bool {
	return target == ErrBudgetExhausted
}

type it func() (stop bool, err error)

// Poller holds the polling interval. The zero value polls every DefaultInterval.
type Poller struct {
	Interval time.Duration

	now func() time.Time // test hook
}

// AssertIt will periodically call it up to budget, asserting that polling
// finished with no error.
func AssertIt(ctx context.Context, t *testing.T, budget time.Duration, it it) {
	t.Helper()
	err := ForIt(ctx, budget, it)
	assert.NilError(t, err)
}

// ForIt polls with the default interval. See Poller.ForIt.
func ForIt(ctx context.Context, budget time.Duration, it it) error {
	return Poller{}.ForIt(ctx, budget, it)
}

// Retry polls with the default interval. See Poller.Retry.
func Retry(ctx context.Context, budget time.Duration, op func() error) error {
	return Poller{}.Retry(ctx, budget, op)
}

// ForIt will periodically call it until it returns stop, or budget has elapsed.
// When it stops with an error that error is returned without further attempts.
// A budget of zero or less makes exactly one attempt.
func (p Poller) ForIt(ctx context.Context, budget time.Duration, it it) error {
	var (
		attempts  int
		permanent bool
	)
	err := backoff.Retry(func() error {
		attempts++
		stop, err := it()
		switch {
		case stop && err != nil:
			permanent = true
			return backoff.Permanent(err)
		case stop:
			return nil
		case err == nil:
			return errConditionNotMet
		}
		return err
	}, backoff.WithContext(p.backOff(budget), ctx))

	switch {
	case err == nil || permanent:
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("polling cancelled after %d attempt(s): %w", attempts, ctx.Err())
	}
	return &BudgetError{Budget: budget, Attempts: attempts, Err: err}
}

// Retry calls op until it returns nil or budget has elapsed. Every error is retried.
func (p Poller) Retry(ctx context.Context, budget time.Duration, op func() error) error {
	return p.ForIt(ctx, budget, func() (bool, error) {
		err := op()
		return err == nil, err
	})
}

// Until observes a state until stopCondition holds for it or budget has elapsed.
// Observation errors count as the condition not holding and are retried.
func Until[T any](ctx context.Context, p Poller, budget time.Duration,
	observe func() (T, error), stopCondition func(T) bool) error {

	return p.ForIt(ctx, budget, func() (bool, error) {
		state, err := observe()
		if err != nil {
			return false, err
		}
		if stopCondition(state) {
			return true, nil
		}
		return false, fmt.Errorf("%w: observed %v", errConditionNotMet, state)
	})
}

func (p Poller) backOff(budget time.Duration) backoff.BackOff {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	now := p.now
	if now == nil {
		now = time.Now
	}
	return &budgetBackOff{
		interval: interval,
		deadline: now().Add(budget),
		now:      now,
	}
}

// budgetBackOff waits a constant interval, clipped so the last attempt lands on the deadline.
type budgetBackOff struct {
	interval time.Duration
	deadline time.Time
	now      func() time.Time
}

func (b *budgetBackOff) Reset() {}

func (b *budgetBackOff) NextBackOff() time.Duration {
	remaining := b.deadline.Sub(b.now())
	switch {
	case remaining <= 0:
		return backoff.Stop
	case remaining < b.interval:
		return remaining
	}
	return b.interval
}
