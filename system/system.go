// Package system runs a set of long-lived services until one fails or the process is asked
// to stop, then runs the cleanups.
package system

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/daprit/o11y"
	"github.com/circleci/daprit/termination"
)

type System struct {
	group    *errgroup.Group
	ctx      context.Context
	services []func(context.Context) error
	cleanups []func(ctx context.Context) error
}

func New(ctx context.Context) *System {
	group, ctx := errgroup.WithContext(ctx)
	return &System{
		group: group,
		ctx:   ctx,
	}
}

var terminationTestHook = termination.Handle

// Run starts every service and blocks until one returns an error or a termination signal
// arrives. Services must return when their context is done.
func (r *System) Run() (err error) {
	_, span := o11y.StartSpan(r.ctx, "system: run")
	defer o11y.End(span, &err)
	span.AddField("services", len(r.services))

	r.group.Go(func() error {
		return terminationTestHook(r.ctx)
	})
	for _, f := range r.services {
		f := f
		r.group.Go(func() error {
			return f(r.ctx)
		})
	}
	return r.group.Wait()
}

func (r *System) AddService(s func(ctx context.Context) error) {
	r.services = append(r.services, s)
}

func (r *System) AddCleanup(c func(ctx context.Context) error) {
	r.cleanups = append(r.cleanups, c)
}

// Cleanup runs the cleanups in reverse order of addition, logging failures.
func (r *System) Cleanup(ctx context.Context) {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		if err := r.cleanups[i](ctx); err != nil {
			o11y.LogError(ctx, "system: cleanup", err)
		}
	}
}
