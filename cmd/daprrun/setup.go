package main

import (
	"context"

	configo11y "github.com/circleci/daprit/config/o11y"
	"github.com/circleci/daprit/config/secret"
)

// Version is set at link time.
var Version = "dev"

type O11yCLI struct {
	O11yStatsd           string        `name:"o11y-statsd" env:"DAPRRUN_O11Y_STATSD" help:"Address to send statsd metrics, none when empty."`
	O11yHoneycombEnabled bool          `name:"o11y-honeycomb" env:"DAPRRUN_O11Y_HONEYCOMB" help:"Send traces to honeycomb."`
	O11yHoneycombDataset string        `name:"o11y-honeycomb-dataset" env:"DAPRRUN_O11Y_HONEYCOMB_DATASET" default:"daprrun"`
	O11yHoneycombKey     secret.String `name:"o11y-honeycomb-key" env:"DAPRRUN_O11Y_HONEYCOMB_KEY"`
	O11yFormat           string        `name:"o11y-format" env:"DAPRRUN_O11Y_FORMAT" enum:"text,color,colour,json,none" default:"text" help:"Format used for stderr logging."`
}

func loadO11y(ctx context.Context, cli O11yCLI) (context.Context, func(context.Context), error) {
	return configo11y.Setup(ctx, configo11y.Config{
		Statsd:           cli.O11yStatsd,
		HoneycombEnabled: cli.O11yHoneycombEnabled,
		HoneycombDataset: cli.O11yHoneycombDataset,
		HoneycombKey:     cli.O11yHoneycombKey,
		Format:           cli.O11yFormat,
		Version:          Version,
		Service:          "daprrun",
		StatsNamespace:   "daprrun.",
	})
}
