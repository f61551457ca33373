package daprrun

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/circleci/daprit/testing/command"
)

// scriptedDapr plays the dapr CLI: runs appear in the listing until they are stopped.
type scriptedDapr struct {
	mu     sync.Mutex
	lines  []string
	listed map[string]bool

	// startErr fails every dapr run.
	startErr error
	// stuck keeps app ids listed even after they are stopped.
	stuck map[string]bool
}

func newScriptedDapr() *scriptedDapr {
	return &scriptedDapr{listed: map[string]bool{}, stuck: map[string]bool{}}
}

func (s *scriptedDapr) Run(ctx context.Context, c command.Command) (*command.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, c.Line)

	args := strings.Fields(c.Line)
	if len(args) < 2 || args[0] != "dapr" {
		// an application launched on its own
		return nil, nil
	}
	switch args[1] {
	case "run":
		if s.startErr != nil {
			return nil, s.startErr
		}
		s.listed[args[3]] = true
		return nil, nil
	case "list":
		if s.listed[c.Marker] {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: not listed", command.ErrMarkerNotObserved)
	case "stop":
		id := args[len(args)-1]
		if !s.listed[id] {
			return nil, fmt.Errorf("%w: couldn't find app id %s", command.ErrMarkerNotObserved, id)
		}
		if !s.stuck[id] {
			delete(s.listed, id)
		}
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown command %q", command.ErrLaunch, c.Line)
}

func (s *scriptedDapr) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, strings.Join(strings.Fields(l)[:2], " "))
	}
	return out
}

// scriptedDialer records every address dialled, refusing those listed in refuse.
type scriptedDialer struct {
	mu     sync.Mutex
	dialed []string
	refuse map[string]bool
}

func (d *scriptedDialer) DialContext(_ context.Context, _, address string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, address)
	if d.refuse[address] {
		return nil, errors.New("connect: connection refused")
	}
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

func (d *scriptedDialer) addresses() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dialed...)
}

// recordingRunner runs real commands and keeps every process it started.
type recordingRunner struct {
	mu    sync.Mutex
	procs []*command.Process
}

func (r *recordingRunner) Run(ctx context.Context, c command.Command) (*command.Process, error) {
	p, err := command.Exec.Run(ctx, c)
	if p != nil {
		r.mu.Lock()
		r.procs = append(r.procs, p)
		r.mu.Unlock()
	}
	return p, err
}

func (r *recordingRunner) processes() []*command.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*command.Process(nil), r.procs...)
}

// writeScript writes an executable shell script standing in for the dapr CLI.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dapr")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700) //nolint:gosec
	assert.NilError(t, err)
	return path
}
