package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/circleci/daprit/o11y"
)

type listCmd struct {
	State
}

func (c *listCmd) Run(ctx context.Context) (err error) {
	_, span := o11y.StartSpan(ctx, "fakedapr: list")
	defer o11y.End(span, &err)

	records, err := c.all()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	var live []record
	for _, r := range records {
		if alive(r.pid) {
			live = append(live, r)
		} else {
			c.remove(r.appID)
		}
	}
	span.AddField("count", len(live))

	if len(live) == 0 {
		fmt.Println("No Dapr instances found.")
		return nil
	}
	fmt.Println("  APP ID  HTTP PORT  GRPC PORT  APP PORT  PID")
	for _, r := range live {
		fmt.Printf("  %s  %d  %d  %d  %d\n", r.appID, r.httpPort, r.grpcPort, r.appPort, r.pid)
	}
	return nil
}

type stopCmd struct {
	State
	AppID string `name:"app-id" required:""`
}

func (c *stopCmd) Run(ctx context.Context) (err error) {
	_, span := o11y.StartSpan(ctx, "fakedapr: stop")
	defer o11y.End(span, &err)

	r, err := c.load(c.AppID)
	if err != nil || !alive(r.pid) {
		c.remove(c.AppID)
		return fmt.Errorf("failed to stop app id %s: couldn't find app id %s", c.AppID, c.AppID)
	}

	if err := syscall.Kill(r.pid, syscall.SIGINT); err != nil {
		return fmt.Errorf("failed to stop app id %s: %w", c.AppID, err)
	}
	// the run removes its record as it exits
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(c.path(c.AppID)); errors.Is(err, os.ErrNotExist) {
			fmt.Println("✅  app stopped successfully: " + c.AppID)
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("failed to stop app id %s: timed out", c.AppID)
}

func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
