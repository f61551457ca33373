package daprrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/daprit/o11y"
)

// Builder builds runs for one test.
type Builder struct {
	testName       string
	ports          PortSupplier
	successMessage string
	maxWait        time.Duration
	service        *Service
	configure      []func(*Config)
}

// NewBuilder returns a builder of runs for testName that wait up to maxWait for
// successMessage. Each build takes a fresh PortSet from ports.
func NewBuilder(testName string, ports PortSupplier, successMessage string, maxWait time.Duration) *Builder {
	return &Builder{
		testName:       testName,
		ports:          ports,
		successMessage: successMessage,
		maxWait:        maxWait,
	}
}

// WithService adds an application to the run.
func (b *Builder) WithService(s Service) *Builder {
	b.service = &s
	return b
}

// WithConfig adjusts the config of every run built, after the builder's own settings.
func (b *Builder) WithConfig(fn func(*Config)) *Builder {
	b.configure = append(b.configure, fn)
	return b
}

func (b *Builder) config(ports PortSet) Config {
	cfg := Config{
		TestName:       b.testName,
		Service:        b.service,
		Ports:          ports,
		SuccessMessage: b.successMessage,
		MaxWait:        b.maxWait,
	}
	for _, fn := range b.configure {
		fn(&cfg)
	}
	return cfg
}

func (b *Builder) supply() (PortSet, error) {
	if b.ports == nil {
		return PortSet{}, nil
	}
	ps, err := b.ports()
	if err != nil {
		return PortSet{}, fmt.Errorf("supplying ports: %w", err)
	}
	return ps, nil
}

// Build returns a run launching the sidecar and, when there is a service, the application
// through dapr run.
func (b *Builder) Build() (*Run, error) {
	ports, err := b.supply()
	if err != nil {
		return nil, err
	}
	return New(b.config(ports))
}

// Split is an application and its sidecar started as separate processes sharing one PortSet.
type Split struct {
	App     *AppRun
	Sidecar *Run
}

// SplitBuild returns separately restartable handles for the application and its sidecar.
// The sidecar waits for SidecarUpMessage, and the application for the builder's success
// message. A service with a command is required.
func (b *Builder) SplitBuild() (*Split, error) {
	if b.service == nil || b.service.Command == "" {
		return nil, errors.New("split build needs a service with a command")
	}
	ports, err := b.supply()
	if err != nil {
		return nil, err
	}

	appCfg := b.config(ports)
	appCfg.setDefaults()
	if err := appCfg.validate(); err != nil {
		return nil, err
	}
	id := Identity(appCfg.TestName, appCfg.serviceName())
	line, err := appCfg.appCommand(id)
	if err != nil {
		return nil, err
	}

	sidecarCfg := b.config(ports)
	// The sidecar runs without the application, so it is identified by the test alone.
	sidecarCfg.Service = nil
	sidecarCfg.SuccessMessage = SidecarUpMessage
	sidecar, err := New(sidecarCfg)
	if err != nil {
		return nil, err
	}

	return &Split{
		App:     newAppRun(appCfg, id, line),
		Sidecar: sidecar,
	}, nil
}

// Start starts the application and the sidecar concurrently.
func (s *Split) Start(ctx context.Context) (err error) {
	ctx, span := o11y.StartSpan(ctx, "daprrun: start split")
	defer o11y.End(span, &err)
	span.AddField("identity", s.Sidecar.Identity())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.App.Start(ctx)
	})
	g.Go(func() error {
		return s.Sidecar.Start(ctx)
	})
	return g.Wait()
}

// Stop stops both processes concurrently. The result is the first failure, if any.
func (s *Split) Stop(ctx context.Context) StopResult {
	var app, sidecar StopResult
	g := errgroup.Group{}
	g.Go(func() error {
		app = s.App.Stop(ctx)
		return nil
	})
	g.Go(func() error {
		sidecar = s.Sidecar.Stop(ctx)
		return nil
	})
	_ = g.Wait()

	if !app.OK() {
		return app
	}
	return sidecar
}
