package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/circleci/daprit/o11y"
)

type Config struct {
	// Host is the sidecar gRPC address, e.g. "127.0.0.1:50001"
	Host string
	// ServiceName is the service retried by default, DaprService when empty.
	ServiceName string
	// Timeout bounds each unary call. Zero leaves calls bounded by their context only.
	Timeout time.Duration
}

// Dial blocks until a connection to conf.Host is established or ctx ends.
func Dial(ctx context.Context, conf Config) (conn *grpc.ClientConn, err error) {
	ctx, span := o11y.StartSpan(ctx, "grpc: dial")
	defer o11y.End(span, &err)
	span.AddField("host", conf.Host)

	service := conf.ServiceName
	if service == "" {
		service = DaprService
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
		grpc.WithDefaultServiceConfig(ServiceConfig(service)),
		grpc.WithChainUnaryInterceptor(tracing(), timeout(conf.Timeout)),
	}
	return grpc.DialContext(ctx, conf.Host, opts...)
}

// CheckHealth asks the standard gRPC health service whether service is serving. An empty
// service checks the server as a whole.
func CheckHealth(ctx context.Context, conn *grpc.ClientConn, service string) (bool, error) {
	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return false, err
	}
	return res.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func timeout(d time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {

		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func tracing() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) (err error) {

		ctx, span := o11y.StartSpan(ctx, "grpc: "+method)
		defer o11y.End(span, &err)
		span.AddRawField("rpc.system", "grpc")
		span.AddRawField("rpc.method", method)
		span.AddRawField("net.peer.name", cc.Target())

		err = invoker(ctx, method, req, reply, cc, opts...)
		span.AddRawField("rpc.grpc.status_code", status.Code(err).String())
		return err
	}
}
