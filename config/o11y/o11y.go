// Package o11y builds the o11y provider for binaries and test helpers from flat configuration.
package o11y

import (
	"context"
	"io"
	"os"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/circleci/daprit/config/secret"
	"github.com/circleci/daprit/o11y"
	"github.com/circleci/daprit/o11y/honeycomb"
)

type Config struct {
	Statsd           string
	HoneycombEnabled bool
	HoneycombDataset string
	HoneycombKey     secret.String
	Format           string
	Version          string
	Service          string
	StatsNamespace   string

	// Optional
	Writer                  io.Writer
	Debug                   bool
	StatsdTelemetryDisabled bool
}

// Setup initialises the o11y provider and returns a context carrying it, plus the function
// that flushes and closes it.
func Setup(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	hc := honeycomb.Config{
		Dataset:     o.HoneycombDataset,
		Key:         o.HoneycombKey.Raw(),
		Format:      o.Format,
		SendTraces:  o.HoneycombEnabled,
		Writer:      o.Writer,
		ServiceName: o.Service,
		Debug:       o.Debug,
	}
	if err := hc.Validate(); err != nil {
		return nil, nil, err
	}

	if o.Statsd != "" {
		hostname, _ := os.Hostname()
		opts := []statsd.Option{
			statsd.WithNamespace(o.StatsNamespace),
			statsd.WithTags([]string{
				"service:" + o.Service,
				"version:" + o.Version,
				"hostname:" + hostname,
			}),
		}
		if o.StatsdTelemetryDisabled {
			opts = append(opts, statsd.WithoutTelemetry())
		}
		stats, err := statsd.New(o.Statsd, opts...)
		if err != nil {
			return nil, nil, err
		}
		hc.Metrics = stats
	}

	provider := honeycomb.New(hc)
	provider.AddGlobalField("service", o.Service)
	provider.AddGlobalField("version", o.Version)

	return o11y.WithProvider(ctx, provider), provider.Close, nil
}
