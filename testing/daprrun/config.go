package daprrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/circleci/daprit/testing/command"
)

var errInvalidConfig = errors.New("invalid run config")

// Dialer opens network connections. *net.Dialer is one.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config describes a run. Zero fields take the documented defaults.
type Config struct {
	// TestName is the base of the run identity and is required.
	TestName string
	// Service optionally names the run and supplies the application embedded in it.
	Service *Service
	Ports   PortSet
	// SuccessMessage is the start command's marker, SidecarUpMessage by default.
	SuccessMessage string
	// MaxWait is the budget for the whole start sequence.
	MaxWait time.Duration

	// DaprBinary is the dapr CLI, "dapr" by default.
	DaprBinary string
	// ComponentsPath is passed to dapr run, "./components" by default.
	ComponentsPath string
	// BindAddress is where the ports are probed, 127.0.0.1 by default.
	BindAddress string
	// HealthCheck additionally waits for the sidecar's /v1.0/healthz when an HTTP port is set.
	HealthCheck bool

	// Runner runs the dapr commands, command.Exec by default.
	Runner command.Runner
	// Dialer probes the ports, a net.Dialer by default.
	Dialer Dialer
	// PollInterval is the sleep between poll attempts, one second by default.
	PollInterval time.Duration
	// ConnectTimeout bounds each port probe, one second by default.
	ConnectTimeout time.Duration
	// CommandTimeout bounds each list and stop command, ten seconds by default.
	CommandTimeout time.Duration
	// Output receives a copy of the output of every command.
	Output io.Writer
}

func (c *Config) setDefaults() {
	if c.SuccessMessage == "" {
		c.SuccessMessage = SidecarUpMessage
	}
	if c.DaprBinary == "" {
		c.DaprBinary = "dapr"
	}
	if c.ComponentsPath == "" {
		c.ComponentsPath = "./components"
	}
	if c.BindAddress == "" {
		c.BindAddress = "127.0.0.1"
	}
	if c.Runner == nil {
		c.Runner = command.Exec
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = time.Second
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	if c.TestName == "" {
		return fmt.Errorf("%w: test name is required", errInvalidConfig)
	}
	if c.MaxWait < 0 {
		return fmt.Errorf("%w: negative max wait %s", errInvalidConfig, c.MaxWait)
	}
	if c.Service != nil && c.Service.Name == "" && c.Service.Command != "" {
		return fmt.Errorf("%w: service command without a service name", errInvalidConfig)
	}
	return nil
}

func (c *Config) serviceName() string {
	if c.Service == nil {
		return ""
	}
	return c.Service.Name
}

// appCommand renders the service's launch command for the run with the given identity.
func (c *Config) appCommand(id string) (string, error) {
	if c.Service == nil || c.Service.Command == "" {
		return "", nil
	}
	tpl, err := fasttemplate.NewTemplate(c.Service.Command, "{{", "}}")
	if err != nil {
		return "", fmt.Errorf("%w: service command template: %v", errInvalidConfig, err)
	}
	return render(tpl, id, c.Ports), nil
}
