// Package testcontext provides a context for tests that carries a working o11y provider,
// so spans and log events from the code under test are printed in the test output.
package testcontext

import (
	"context"
	"os"

	"github.com/circleci/daprit/o11y"
	"github.com/circleci/daprit/o11y/honeycomb"
)

// ctx is created at package init so tests running in parallel share one beeline.
var ctx = newContext()

// Background returns a context for use in tests which contains a working o11y, so you get logs.
func Background() context.Context {
	return ctx
}

func newContext() context.Context {
	format := os.Getenv("DAPRIT_TEST_O11Y_FORMAT")
	if format == "" {
		format = "text"
	}
	p := honeycomb.New(honeycomb.Config{
		Format:      format,
		Writer:      os.Stdout,
		ServiceName: "test-service",
	})
	p.AddGlobalField("service", "test-service")
	return o11y.WithProvider(context.Background(), p)
}
