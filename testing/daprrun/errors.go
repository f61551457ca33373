package daprrun

import (
	"errors"
	"fmt"
)

var (
	// ErrPortUnreachable is returned when a port did not accept a TCP connection.
	ErrPortUnreachable = errors.New("port unreachable")
	// ErrUnhealthy is returned when the sidecar health endpoint did not report healthy.
	ErrUnhealthy = errors.New("sidecar unhealthy")
	// ErrNoPort is returned when a client needs a port the run does not expose.
	ErrNoPort = errors.New("port not exposed by run")
)

// Step names a stage of the start sequence.
type Step string

const (
	StepConfirmStopped Step = "confirm-stopped"
	StepStart          Step = "start"
	StepConfirmListed  Step = "confirm-listed"
	StepProbePort      Step = "probe-port"
	StepHealthCheck    Step = "health-check"
)

// StartError reports the step at which a run failed to become ready. It unwraps to the
// failure of that step, so it matches poll.ErrBudgetExhausted, command.ErrMarkerNotObserved,
// ErrPortUnreachable and the other causes with errors.Is.
type StartError struct {
	Identity string
	Step     Step
	// Port is the port in question at StepProbePort and StepHealthCheck. Zero is a valid port.
	Port int
	Err  error
}

func (e *StartError) Error() string {
	step := string(e.Step)
	if e.Step == StepProbePort || e.Step == StepHealthCheck {
		step = fmt.Sprintf("%s (port %d)", step, e.Port)
	}
	return fmt.Sprintf("run %s failed to become ready at step %s, last error: %v", e.Identity, step, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// StopStatus is the outcome of a stop.
type StopStatus int

const (
	Stopped StopStatus = iota
	StopAttemptedButFailed
)

func (s StopStatus) String() string {
	if s == Stopped {
		return "stopped"
	}
	return "stop attempted but failed"
}

// StopResult reports a best effort stop. Err is set when Status is StopAttemptedButFailed.
type StopResult struct {
	Status StopStatus
	Err    error
}

func (r StopResult) OK() bool {
	return r.Status == Stopped
}
