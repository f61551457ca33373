// Command daprrun starts, stops and inspects dapr sidecar runs from a shell, the same way
// integration tests do with the daprrun package.
package main

import (
	"context"
	"errors"
	"fmt"
	"log" //nolint:depguard // a top-level fatal happens outside o11y
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/circleci/daprit/o11y"
	"github.com/circleci/daprit/system"
	"github.com/circleci/daprit/termination"
	"github.com/circleci/daprit/testing/command"
	"github.com/circleci/daprit/testing/daprrun"
)

type cli struct {
	O11yCLI

	Start  startCmd  `cmd:"" help:"Start a run and wait until it is ready."`
	Stop   stopCmd   `cmd:"" help:"Stop a run."`
	Status statusCmd `cmd:"" help:"Report whether a run is listed, exiting non-zero when it is not."`
}

var errNotListed = errors.New("not listed")

func main() {
	err := run()
	if err != nil && !errors.Is(err, termination.ErrTerminated) {
		log.Fatal("daprrun: ", err)
	}
}

func run() (err error) {
	c := cli{}
	kctx := kong.Parse(&c,
		kong.Name("daprrun"),
		kong.Description("Run dapr sidecars for integration tests."),
	)

	ctx, o11yCleanup, err := loadO11y(context.Background(), c.O11yCLI)
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, span := o11y.StartSpan(ctx, "main: run")
	defer o11y.End(span, &err)
	span.AddField("command", kctx.Command())

	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run()
}

// RunFlags identify a run and the dapr CLI that manages it.
type RunFlags struct {
	TestName       string `name:"test-name" env:"DAPRRUN_TEST_NAME" required:"" help:"Name of the test owning the run."`
	ServiceName    string `name:"service-name" env:"DAPRRUN_SERVICE_NAME" help:"Service run alongside the sidecar."`
	DaprBinary     string `name:"dapr-binary" env:"DAPRRUN_DAPR_BINARY" default:"dapr" help:"The dapr CLI."`
	ComponentsPath string `name:"components-path" env:"DAPRRUN_COMPONENTS_PATH" default:"./components"`
	BindAddress    string `name:"bind-address" env:"DAPRRUN_BIND_ADDRESS" default:"127.0.0.1" help:"Address the ports are probed on."`
	Verbose        bool   `name:"verbose" env:"DAPRRUN_VERBOSE" help:"Copy dapr output to stderr."`
}

func (f RunFlags) configure(c *daprrun.Config) {
	c.DaprBinary = f.DaprBinary
	c.ComponentsPath = f.ComponentsPath
	c.BindAddress = f.BindAddress
	if f.Verbose {
		c.Output = os.Stderr
	}
}

func (f RunFlags) identity() string {
	return daprrun.Identity(f.TestName, f.ServiceName)
}

type startCmd struct {
	RunFlags
	AppCommand     string        `name:"app-command" env:"DAPRRUN_APP_COMMAND" help:"Application command, may use {{app_port}}, {{http_port}}, {{grpc_port}} and {{app_id}}."`
	AppPort        int           `name:"app-port" env:"DAPRRUN_APP_PORT" help:"Application port, none when zero."`
	HTTPPort       int           `name:"http-port" env:"DAPRRUN_HTTP_PORT" help:"Sidecar HTTP port, none when zero."`
	GRPCPort       int           `name:"grpc-port" env:"DAPRRUN_GRPC_PORT" help:"Sidecar gRPC port, none when zero."`
	MaxWait        time.Duration `name:"max-wait" env:"DAPRRUN_MAX_WAIT" default:"60s" help:"Time allowed for the run to become ready."`
	SuccessMessage string        `name:"success-message" env:"DAPRRUN_SUCCESS_MESSAGE" help:"Output proving the run started, the sidecar up message when empty."`
	HealthCheck    bool          `name:"health-check" env:"DAPRRUN_HEALTH_CHECK" help:"Also wait for the sidecar health endpoint."`
	Wait           bool          `name:"wait" env:"DAPRRUN_WAIT" help:"Stay running until interrupted, then stop the run."`
}

func (c *startCmd) ports() (daprrun.PortSet, error) {
	var opts []daprrun.PortOption
	if c.AppPort != 0 {
		opts = append(opts, daprrun.WithAppPort(c.AppPort))
	}
	if c.HTTPPort != 0 {
		opts = append(opts, daprrun.WithHTTPPort(c.HTTPPort))
	}
	if c.GRPCPort != 0 {
		opts = append(opts, daprrun.WithGRPCPort(c.GRPCPort))
	}
	return daprrun.NewPortSet(opts...)
}

func (c *startCmd) builder() *daprrun.Builder {
	b := daprrun.NewBuilder(c.TestName, c.ports, c.SuccessMessage, c.MaxWait).
		WithConfig(c.configure).
		WithConfig(func(cfg *daprrun.Config) {
			cfg.HealthCheck = c.HealthCheck
		})
	if c.ServiceName != "" || c.AppCommand != "" {
		b = b.WithService(daprrun.Service{Name: c.ServiceName, Command: c.AppCommand})
	}
	return b
}

func (c *startCmd) Run(ctx context.Context) error {
	r, err := c.builder().Build()
	if err != nil {
		return err
	}
	if err := r.Start(ctx); err != nil {
		return err
	}

	for _, kv := range r.Use().Environ() {
		fmt.Println(kv)
	}
	if !c.Wait {
		return nil
	}

	sys := system.New(ctx)
	sys.AddCleanup(func(ctx context.Context) error {
		return r.Stop(ctx).Err
	})
	defer sys.Cleanup(ctx)
	return sys.Run()
}

type stopCmd struct {
	RunFlags
}

func (c *stopCmd) config() daprrun.Config {
	cfg := daprrun.Config{TestName: c.TestName}
	if c.ServiceName != "" {
		cfg.Service = &daprrun.Service{Name: c.ServiceName}
	}
	c.configure(&cfg)
	return cfg
}

func (c *stopCmd) Run(ctx context.Context) error {
	r, err := daprrun.New(c.config())
	if err != nil {
		return err
	}
	res := r.Stop(ctx)
	fmt.Printf("%s: %s\n", r.Identity(), res.Status)
	return stopError(ctx, res)
}

// stopError fails the command unless dapr stop ran and simply did not find the run.
func stopError(ctx context.Context, res daprrun.StopResult) error {
	if errors.Is(res.Err, command.ErrMarkerNotObserved) {
		o11y.LogError(ctx, "daprrun: stop", o11y.AsWarning(res.Err))
		return nil
	}
	return res.Err
}

type statusCmd struct {
	RunFlags
}

func (c *statusCmd) Run(ctx context.Context) error {
	id := c.identity()
	_, err := command.New(id, c.DaprBinary+" list").Run(ctx)
	switch {
	case errors.Is(err, command.ErrMarkerNotObserved):
		fmt.Printf("%s: not listed\n", id)
		return fmt.Errorf("%s: %w", id, errNotListed)
	case err != nil:
		return err
	}
	fmt.Printf("%s: listed\n", id)
	return nil
}
