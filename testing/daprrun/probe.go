package daprrun

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/circleci/daprit/httpclient"
	"github.com/circleci/daprit/o11y"
	"github.com/circleci/daprit/testing/command"
	"github.com/circleci/daprit/testing/poll"
)

// probe makes one TCP connection attempt to port.
func (c *Config) probe(ctx context.Context, port int) error {
	ctx, cancel := context.WithTimeout(ctx, c.ConnectTimeout)
	defer cancel()

	addr := net.JoinHostPort(c.BindAddress, strconv.Itoa(port))
	conn, err := c.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPortUnreachable, addr, err)
	}
	_ = conn.Close()
	return nil
}

// awaitPort polls port until it accepts a connection or budget is spent.
func (c *Config) awaitPort(ctx context.Context, p namedPort, budget time.Duration) (err error) {
	ctx, span := o11y.StartSpan(ctx, "daprrun: await port")
	defer o11y.End(span, &err)
	span.AddField("port_name", p.name)
	span.AddField("port", p.port)

	attempts := 0
	defer func() { span.AddField("attempts", attempts) }()
	return c.poller().Retry(ctx, budget, func() error {
		attempts++
		return c.probe(ctx, p.port)
	})
}

// awaitHealthy polls the sidecar health endpoint on port until it answers 2XX.
func (c *Config) awaitHealthy(ctx context.Context, port int, budget time.Duration) (err error) {
	ctx, span := o11y.StartSpan(ctx, "daprrun: await healthy")
	defer o11y.End(span, &err)

	client := httpclient.New(httpclient.Config{
		Name:    "sidecar-health",
		BaseURL: "http://" + net.JoinHostPort(c.BindAddress, strconv.Itoa(port)),
		Timeout: c.ConnectTimeout,
	})
	defer client.CloseIdleConnections()

	return c.poller().Retry(ctx, budget, func() error {
		err := client.Call(ctx, httpclient.NewRequest("GET", "/v1.0/healthz", c.ConnectTimeout))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnhealthy, err)
		}
		return nil
	})
}

// launch runs cmd once, waiting at most budget for its marker. At least ConnectTimeout is
// allowed so a spent budget still makes one real attempt.
func (c *Config) launch(ctx context.Context, cmd command.Command, budget time.Duration) (*command.Process, error) {
	wait := budget
	if wait < c.ConnectTimeout {
		wait = c.ConnectTimeout
	}
	lctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	p, err := c.Runner.Run(lctx, cmd)
	if err != nil && ctx.Err() == nil && lctx.Err() != nil {
		err = &poll.BudgetError{Budget: budget, Attempts: 1, Err: err}
	}
	return p, err
}

func (c *Config) poller() poll.Poller {
	return poll.Poller{Interval: c.PollInterval}
}
