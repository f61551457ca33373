package daprrun

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"google.golang.org/grpc"

	daprgrpc "github.com/circleci/daprit/grpc"
	"github.com/circleci/daprit/httpclient"
)

// ClientConfig tells test clients how to reach one run's sidecar. Each test builds its
// clients from the ClientConfig of the run it uses.
type ClientConfig struct {
	Host       string
	HTTPPort   int
	GRPCPort   int
	PreferGRPC bool
}

// WithGRPC returns a copy preferring the gRPC API.
func (c ClientConfig) WithGRPC() ClientConfig {
	c.PreferGRPC = true
	return c
}

// WithHTTP returns a copy preferring the HTTP API.
func (c ClientConfig) WithHTTP() ClientConfig {
	c.PreferGRPC = false
	return c
}

func (c ClientConfig) Protocol() string {
	if c.PreferGRPC {
		return "grpc"
	}
	return "http"
}

// Environ returns the variables a dapr SDK reads to find its sidecar, for passing to a
// client process.
func (c ClientConfig) Environ() []string {
	var env []string
	if c.HTTPPort != 0 {
		env = append(env, "DAPR_HTTP_PORT="+strconv.Itoa(c.HTTPPort))
	}
	if c.GRPCPort != 0 {
		env = append(env, "DAPR_GRPC_PORT="+strconv.Itoa(c.GRPCPort))
	}
	return append(env, "DAPR_API_PROTOCOL="+c.Protocol())
}

func (c ClientConfig) HTTPAddress() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.HTTPPort))
}

func (c ClientConfig) GRPCAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.GRPCPort))
}

// HTTPClient returns a client of the sidecar HTTP API. Calls are retried for up to timeout.
func (c ClientConfig) HTTPClient(name string, timeout time.Duration) (*httpclient.Client, error) {
	if c.HTTPPort == 0 {
		return nil, fmt.Errorf("%w: http", ErrNoPort)
	}
	return httpclient.New(httpclient.Config{
		Name:    name,
		BaseURL: c.HTTPAddress(),
		Timeout: timeout,
	}), nil
}

// DialGRPC connects to the sidecar gRPC API, blocking until connected or ctx ends.
func (c ClientConfig) DialGRPC(ctx context.Context) (*grpc.ClientConn, error) {
	if c.GRPCPort == 0 {
		return nil, fmt.Errorf("%w: grpc", ErrNoPort)
	}
	return daprgrpc.Dial(ctx, daprgrpc.Config{
		Host:    c.GRPCAddress(),
		Timeout: 10 * time.Second,
	})
}
