// Package termination waits for the process to be asked to stop.
package termination

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/circleci/daprit/o11y"
)

// ErrTerminated is a warning, so a signalled shutdown is not traced as an error.
var ErrTerminated = o11y.NewWarning("terminated")

// Handle blocks until SIGINT or SIGTERM arrives, returning an error matching ErrTerminated,
// or until ctx is done, returning nil.
func Handle(ctx context.Context) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case s := <-quit:
		return fmt.Errorf("%w: %s", ErrTerminated, s)
	case <-ctx.Done():
		return nil
	}
}
