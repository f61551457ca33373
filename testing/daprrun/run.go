// Package daprrun starts a Dapr sidecar, optionally with an application, for integration
// tests and waits until it is ready to serve. Starting always stops any earlier run with the
// same identity first, so a test can be rerun after a crash that left its sidecar behind.
//
// The sequence of Run.Start shares one time budget, MaxWait, between its steps:
//
//  1. stop any prior run with the same identity, best effort
//  2. poll dapr list until the identity is gone
//  3. run dapr run once, waiting for the success message
//  4. poll dapr list until the identity is listed
//  5. probe the app, HTTP and gRPC ports in that order, each until it accepts connections
//  6. optionally poll the sidecar health endpoint
//
// Each step is given whatever remains of the budget. Once it is spent, each remaining
// poll makes a single attempt.
package daprrun

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/circleci/daprit/o11y"
	"github.com/circleci/daprit/testing/command"
	"github.com/circleci/daprit/testing/poll"
)

// State is the last lifecycle state a Run reached.
type State int32

const (
	StateUnstarted State = iota
	StateStoppingPrior
	StateStarting
	StateConfirmingListed
	StateConfirmingPorts
	StateCheckingHealth
	StateReady
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateStoppingPrior:
		return "stopping-prior"
	case StateStarting:
		return "starting"
	case StateConfirmingListed:
		return "confirming-listed"
	case StateConfirmingPorts:
		return "confirming-ports"
	case StateCheckingHealth:
		return "checking-health"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Run is one sidecar run. A Run is used by a single test; Start and Stop must not be called
// concurrently with each other, although Started and State may be read at any time.
type Run struct {
	cfg      Config
	identity string
	cmds     commands

	started atomic.Bool
	state   atomic.Int32

	mu   sync.Mutex
	proc *command.Process

	now func() time.Time
}

// New validates cfg and returns an unstarted run.
func New(cfg Config) (*Run, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	id := Identity(cfg.TestName, cfg.serviceName())
	app, err := cfg.appCommand(id)
	if err != nil {
		return nil, err
	}
	return &Run{
		cfg:      cfg,
		identity: id,
		cmds:     newCommands(cfg, id, app),
		now:      time.Now,
	}, nil
}

func (r *Run) Identity() string {
	return r.identity
}

func (r *Run) Ports() PortSet {
	return r.cfg.Ports
}

func (r *Run) AppPort() (int, bool) {
	return r.cfg.Ports.App()
}

func (r *Run) HTTPPort() (int, bool) {
	return r.cfg.Ports.HTTP()
}

func (r *Run) GRPCPort() (int, bool) {
	return r.cfg.Ports.GRPC()
}

// Started reports whether the latest Start got as far as launching the sidecar.
func (r *Run) Started() bool {
	return r.started.Load()
}

func (r *Run) State() State {
	return State(r.state.Load())
}

func (r *Run) setState(s State) {
	r.state.Store(int32(s))
}

// Use returns the client configuration for this run. It prefers gRPC; WithHTTP switches a
// client back to the HTTP API.
func (r *Run) Use() ClientConfig {
	c := ClientConfig{Host: r.cfg.BindAddress, PreferGRPC: true}
	c.HTTPPort, _ = r.cfg.Ports.HTTP()
	c.GRPCPort, _ = r.cfg.Ports.GRPC()
	return c
}

// Start brings the run to the ready state within MaxWait, replacing any prior run with the
// same identity. Calling Start again repeats the whole sequence. A failure is a *StartError.
func (r *Run) Start(ctx context.Context) (err error) {
	ctx, span := o11y.StartSpan(ctx, "daprrun: start")
	defer o11y.End(span, &err)
	span.AddField("identity", r.identity)
	span.AddField("ports", r.cfg.Ports.String())
	span.AddField("max_wait", r.cfg.MaxWait.String())

	begin := r.now()
	deadline := begin.Add(r.cfg.MaxWait)
	remaining := func() time.Duration {
		return deadline.Sub(r.now())
	}
	defer func() {
		r.recordStart(ctx, begin, err)
	}()

	r.setState(StateStoppingPrior)
	if res := r.stop(ctx); !res.OK() {
		o11y.Log(ctx, "daprrun: no prior run stopped",
			o11y.Field("identity", r.identity),
			o11y.Field("reason", res.Err),
		)
	}
	r.started.Store(false)

	err = poll.Until(ctx, r.cfg.poller(), remaining(), r.observeListed(ctx), notListed)
	if err != nil {
		return r.failed(StepConfirmStopped, 0, err)
	}

	r.setState(StateStarting)
	p, err := r.cfg.launch(ctx, r.cmds.start, remaining())
	r.track(p)
	if err != nil {
		return r.failed(StepStart, 0, err)
	}
	r.started.Store(true)

	r.setState(StateConfirmingListed)
	err = poll.Until(ctx, r.cfg.poller(), remaining(), r.observeListed(ctx), listed)
	if err != nil {
		return r.failed(StepConfirmListed, 0, err)
	}

	r.setState(StateConfirmingPorts)
	for _, port := range r.cfg.Ports.ordered() {
		if err = r.cfg.awaitPort(ctx, port, remaining()); err != nil {
			return r.failed(StepProbePort, port.port, err)
		}
	}

	if port, ok := r.cfg.Ports.HTTP(); ok && r.cfg.HealthCheck {
		r.setState(StateCheckingHealth)
		if err = r.cfg.awaitHealthy(ctx, port, remaining()); err != nil {
			return r.failed(StepHealthCheck, port, err)
		}
	}

	r.setState(StateReady)
	o11y.Log(ctx, "daprrun: ready",
		o11y.Field("identity", r.identity),
		o11y.Field("elapsed", r.now().Sub(begin).String()),
	)
	return nil
}

func (r *Run) failed(step Step, port int, err error) error {
	return &StartError{Identity: r.identity, Step: step, Port: port, Err: err}
}

// Stop stops the run with dapr stop. It never fails the caller: the outcome is reported in
// the result, and logged.
func (r *Run) Stop(ctx context.Context) StopResult {
	res := r.stop(ctx)
	r.setState(StateStopped)

	tags := []string{"identity:" + r.identity, "status:" + res.Status.String()}
	_ = o11y.FromContext(ctx).MetricsProvider().Count("daprrun.stop", 1, tags, 1)
	return res
}

func (r *Run) stop(ctx context.Context) (res StopResult) {
	var err error
	ctx, span := o11y.StartSpan(ctx, "daprrun: stop")
	defer func() {
		if err != nil && !r.started.Load() {
			// nothing we started is running, so this is usually "app not found"
			err = o11y.AsWarning(err)
		}
		o11y.End(span, &err)
		res = StopResult{Status: Stopped}
		if err != nil {
			res = StopResult{Status: StopAttemptedButFailed, Err: err}
		}
	}()
	span.AddField("identity", r.identity)
	span.AddField("started", r.started.Load())

	err = r.runCommand(ctx, r.cmds.stop)

	if p := r.release(); p != nil {
		if perr := p.Stop(ctx); perr != nil {
			o11y.LogError(ctx, "daprrun: stop sidecar process", perr, o11y.Field("pid", p.Pid()))
		}
	}
	return res
}

// observeListed reports whether dapr list shows this run.
func (r *Run) observeListed(ctx context.Context) func() (bool, error) {
	return func() (bool, error) {
		err := r.runCommand(ctx, r.cmds.list)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, command.ErrMarkerNotObserved):
			return false, nil
		}
		return false, err
	}
}

// runCommand runs a short-lived dapr command within CommandTimeout. A command still running
// when the wait ends is stopped.
func (r *Run) runCommand(ctx context.Context, c command.Command) error {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.CommandTimeout)
	defer cancel()

	p, err := r.cfg.Runner.Run(cctx, c)
	if p != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		if perr := p.Stop(ctx); perr != nil {
			o11y.LogError(ctx, "daprrun: stop hung command", perr,
				o11y.Field("command", c.Line), o11y.Field("pid", p.Pid()))
		}
	}
	return err
}

func listed(l bool) bool    { return l }
func notListed(l bool) bool { return !l }

// track keeps the dapr run process so Stop can reap it.
func (r *Run) track(p *command.Process) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proc = p
}

func (r *Run) release() *command.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.proc
	r.proc = nil
	return p
}

func (r *Run) recordStart(ctx context.Context, begin time.Time, err error) {
	tags := []string{"result:success"}
	se := &StartError{}
	if errors.As(err, &se) {
		tags = []string{"result:error", "step:" + string(se.Step)}
	}
	ms := float64(r.now().Sub(begin).Nanoseconds()) / 1000000.0
	_ = o11y.FromContext(ctx).MetricsProvider().TimeInMilliseconds("daprrun.start", ms, tags, 1)
}
