package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/circleci/daprit/internal/syncbuffer"
)

// Process is a command started by Run.
type Process struct {
	cmd  *exec.Cmd
	logs *syncbuffer.SyncBuffer

	done chan struct{}
	err  error
}

func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Logs returns the combined output captured so far.
func (p *Process) Logs() string {
	return p.logs.String()
}

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits, returning its exit error.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop sends the process an interrupt and waits for it to exit, killing it if it has not
// exited after StopGrace. Stopping an exited process returns nil.
func (p *Process) Stop(ctx context.Context) error {
	if p.Exited() {
		return nil
	}

	err := p.cmd.Process.Signal(os.Interrupt)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to SIGINT: %w", err)
	}

	grace := time.NewTimer(StopGrace)
	defer grace.Stop()

	select {
	case <-p.done:
		return interrupted(p.err)
	case <-grace.C:
	case <-ctx.Done():
	}

	_ = p.cmd.Process.Kill()
	<-p.done
	return errors.New("SIGINT timed out, process killed")
}

// interrupted treats an exit caused by our own interrupt as a clean stop.
func interrupted(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && !exitErr.Exited() {
		return nil
	}
	return err
}
