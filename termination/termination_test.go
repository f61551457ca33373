package termination

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/circleci/daprit/o11y"
)

func TestHandle_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Check(t, Handle(ctx))
}

func TestErrTerminated_IsWarning(t *testing.T) {
	err := fmt.Errorf("%w: %s", ErrTerminated, syscall.SIGTERM)
	assert.Check(t, errors.Is(err, ErrTerminated))
	assert.Check(t, o11y.IsWarning(err))
}
