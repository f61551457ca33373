package system

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/daprit/o11y"
	"github.com/circleci/daprit/termination"
	"github.com/circleci/daprit/testing/testcontext"
)

func TestSystem_Run(t *testing.T) {
	ctx := testcontext.Background()

	started := make(chan struct{})
	terminationTestHook = func(ctx context.Context) error {
		<-started
		return termination.ErrTerminated
	}
	t.Cleanup(func() { terminationTestHook = termination.Handle })

	sys := New(ctx)
	stopped := false
	sys.AddService(func(ctx context.Context) (err error) {
		ctx, span := o11y.StartSpan(ctx, "service")
		defer o11y.End(span, &err)
		close(started)
		<-ctx.Done()
		stopped = true
		return nil
	})

	var order []string
	sys.AddCleanup(func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	sys.AddCleanup(func(ctx context.Context) error {
		order = append(order, "second")
		return errors.New("cleanup failed")
	})

	err := sys.Run()
	assert.Check(t, errors.Is(err, termination.ErrTerminated))
	assert.Check(t, o11y.IsWarning(err))
	assert.Check(t, stopped)

	sys.Cleanup(ctx)
	assert.Check(t, cmp.DeepEqual(order, []string{"second", "first"}))
}

func TestSystem_ServiceFailure(t *testing.T) {
	sys := New(testcontext.Background())
	boom := errors.New("boom")
	sys.AddService(func(ctx context.Context) error {
		return boom
	})
	sys.AddService(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	assert.Check(t, cmp.ErrorIs(sys.Run(), boom))
}
