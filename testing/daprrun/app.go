package daprrun

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/circleci/daprit/o11y"
	"github.com/circleci/daprit/testing/command"
)

// AppRun is an application started on its own, for use with a sidecar Run that can be
// restarted independently.
type AppRun struct {
	cfg      Config
	identity string
	cmd      command.Command

	started atomic.Bool

	mu   sync.Mutex
	proc *command.Process
}

func newAppRun(cfg Config, id, line string) *AppRun {
	cmd := command.New(cfg.SuccessMessage, line)
	cmd.Output = cfg.Output
	return &AppRun{cfg: cfg, identity: id, cmd: cmd}
}

func (a *AppRun) Identity() string {
	return a.identity
}

func (a *AppRun) Started() bool {
	return a.started.Load()
}

// Start launches the application, stopping any process left from an earlier Start, and waits
// within MaxWait for its success message and then for its app port.
func (a *AppRun) Start(ctx context.Context) (err error) {
	ctx, span := o11y.StartSpan(ctx, "daprrun: start app")
	defer o11y.End(span, &err)
	span.AddField("identity", a.identity)
	span.AddField("command", a.cmd.Line)

	deadline := time.Now().Add(a.cfg.MaxWait)

	if res := a.Stop(ctx); !res.OK() {
		o11y.LogError(ctx, "daprrun: stop prior app", res.Err)
	}
	a.started.Store(false)

	p, err := a.cfg.launch(ctx, a.cmd, time.Until(deadline))
	a.track(p)
	if err != nil {
		return &StartError{Identity: a.identity, Step: StepStart, Err: err}
	}
	a.started.Store(true)

	if port, ok := a.cfg.Ports.App(); ok {
		if err = a.cfg.awaitPort(ctx, namedPort{name: "app", port: port}, time.Until(deadline)); err != nil {
			return &StartError{Identity: a.identity, Step: StepProbePort, Port: port, Err: err}
		}
	}
	return nil
}

// Stop interrupts the application, killing it if it does not exit in time. Stopping an app
// that is not running reports Stopped.
func (a *AppRun) Stop(ctx context.Context) StopResult {
	a.mu.Lock()
	p := a.proc
	a.proc = nil
	a.mu.Unlock()

	if p == nil {
		return StopResult{Status: Stopped}
	}
	if err := p.Stop(ctx); err != nil {
		o11y.LogError(ctx, "daprrun: stop app", err, o11y.Field("identity", a.identity))
		return StopResult{Status: StopAttemptedButFailed, Err: err}
	}
	return StopResult{Status: Stopped}
}

func (a *AppRun) track(p *command.Process) {
	if p == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.proc = p
}
