// Package command runs an external command line and reports success as soon as a marker
// string appears in its output. The process may keep running after the marker is seen,
// which is how long-lived sidecars are launched from tests.
package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/circleci/daprit/internal/syncbuffer"
	"github.com/circleci/daprit/o11y"
)

var (
	// ErrLaunch is returned when the command line could not be parsed or started.
	ErrLaunch = errors.New("subprocess launch failure")
	// ErrMarkerNotObserved is returned when the output ended without the marker.
	ErrMarkerNotObserved = errors.New("marker not observed")
	// ErrUnexpectedTermination is returned when the process failed before printing the marker.
	// It matches ErrMarkerNotObserved.
	ErrUnexpectedTermination = fmt.Errorf("unexpected termination: %w", ErrMarkerNotObserved)
)

// StopGrace is how long Process.Stop waits after SIGINT before killing the process.
var StopGrace = 10 * time.Second

const (
	tailLines = 10
	// pipeDelay bounds how long an exited process's inherited pipes may stay open.
	pipeDelay = 2 * time.Second
)

// Command describes a command line and the marker that proves it succeeded.
type Command struct {
	Marker string
	Line   string
	// Env is added to the current environment.
	Env []string
	Dir string
	// Output optionally receives a copy of the combined stdout and stderr.
	Output io.Writer
}

// New returns a Command that succeeds when a line of its output contains marker.
func New(marker, line string) Command {
	return Command{Marker: marker, Line: line}
}

func (c Command) String() string {
	return c.Line
}

// Runner runs commands.
type Runner interface {
	Run(ctx context.Context, c Command) (*Process, error)
}

// Exec runs commands as real subprocesses.
var Exec Runner = execRunner{}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, c Command) (*Process, error) {
	return c.Run(ctx)
}

// Run starts the command and scans its combined output until a line contains the marker,
// returning the still running process. The remaining output is drained in the background.
// The process is not tied to ctx; ctx only bounds the wait for the marker.
func (c Command) Run(ctx context.Context) (p *Process, err error) {
	ctx, span := o11y.StartSpan(ctx, "command: run")
	defer o11y.End(span, &err)
	span.AddField("command", c.Line)
	span.AddField("marker", c.Marker)

	args, err := shlex.Split(c.Line)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrLaunch, c.Line, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty command line", ErrLaunch)
	}

	//#nosec:G204 // running commands is the purpose of this package
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = pipeDelay
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	pr, pw := io.Pipe()
	p = &Process{
		cmd:  cmd,
		logs: &syncbuffer.SyncBuffer{},
		done: make(chan struct{}),
	}
	// The scan pipe goes last so a chunk holding the marker is already in the logs once
	// Run returns.
	writers := []io.Writer{p.logs}
	if c.Output != nil {
		writers = append(writers, c.Output)
	}
	out := io.MultiWriter(append(writers, pw)...)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLaunch, args[0], err)
	}
	span.AddField("pid", cmd.Process.Pid)

	go func() {
		p.err = cmd.Wait()
		close(p.done)
		_ = pw.Close()
	}()

	seen := make(chan bool, 1)
	go scanFor(pr, c.Marker, seen)

	select {
	case ok := <-seen:
		if ok {
			return p, nil
		}
	case <-ctx.Done():
		return p, fmt.Errorf("waiting for %q from %q: %w", c.Marker, c.Line, ctx.Err())
	}

	<-p.done
	if p.err != nil {
		return p, fmt.Errorf("%w: %q: %v\n%s", ErrUnexpectedTermination, c.Line, p.err, p.logs.Tail(tailLines))
	}
	return p, fmt.Errorf("%w: %q did not print %q\n%s", ErrMarkerNotObserved, c.Line, c.Marker, p.logs.Tail(tailLines))
}

// scanFor reports on seen whether a line containing marker appeared before the output ended.
// After the marker it keeps reading, so a process that outlives the scan never blocks on a
// full pipe.
func scanFor(r io.Reader, marker string, seen chan<- bool) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if strings.Contains(line, marker) {
			seen <- true
			_, _ = io.Copy(io.Discard, br)
			return
		}
		if err != nil {
			seen <- false
			return
		}
	}
}
