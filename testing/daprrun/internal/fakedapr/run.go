package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/circleci/daprit/httpserver"
	"github.com/circleci/daprit/httpserver/ginrouter"
	"github.com/circleci/daprit/o11y"
	"github.com/circleci/daprit/system"
)

type runCmd struct {
	State
	AppID          string   `name:"app-id" required:""`
	ComponentsPath string   `name:"components-path"`
	AppPort        int      `name:"app-port"`
	DaprHTTPPort   int      `name:"dapr-http-port"`
	DaprGRPCPort   int      `name:"dapr-grpc-port"`
	Mode           string   `env:"FAKEDAPR_MODE" enum:"normal,exit,quiet,hang" default:"normal"`
	Command        []string `arg:"" optional:"" passthrough:""`
}

func (c *runCmd) Run(ctx context.Context) (err error) {
	ctx, span := o11y.StartSpan(ctx, "fakedapr: run")
	defer o11y.End(span, &err)
	span.AddField("app_id", c.AppID)

	fmt.Printf("Starting Dapr with id %s. HTTP Port: %d. gRPC Port: %d\n", c.AppID, c.DaprHTTPPort, c.DaprGRPCPort)
	switch c.Mode {
	case "exit":
		return errors.New("error: components path does not exist")
	case "quiet":
		return nil
	}

	sys := system.New(ctx)
	defer sys.Cleanup(ctx)

	if c.DaprHTTPPort > 0 {
		r := ginrouter.Default(ctx, "fakedapr-http")
		r.GET("/v1.0/healthz", func(gc *gin.Context) {
			gc.Status(http.StatusNoContent)
		})
		r.GET("/v1.0/metadata", func(gc *gin.Context) {
			gc.JSON(http.StatusOK, gin.H{"id": c.AppID})
		})
		_, err = httpserver.Load(ctx, httpserver.Config{
			Name:    "fakedapr-http",
			Addr:    net.JoinHostPort("127.0.0.1", strconv.Itoa(c.DaprHTTPPort)),
			Handler: r,
		}, sys)
		if err != nil {
			return err
		}
	}

	if c.DaprGRPCPort > 0 {
		if err = loadGRPC(c.DaprGRPCPort, sys); err != nil {
			return err
		}
	}

	if len(c.Command) > 0 {
		if err = c.loadApp(sys); err != nil {
			return err
		}
	}

	if err = c.save(record{
		appID:    c.AppID,
		pid:      os.Getpid(),
		httpPort: c.DaprHTTPPort,
		grpcPort: c.DaprGRPCPort,
		appPort:  c.AppPort,
	}); err != nil {
		return err
	}
	sys.AddCleanup(func(context.Context) error {
		c.remove(c.AppID)
		return nil
	})

	if c.Mode != "hang" {
		fmt.Println("You're up and running! Both Dapr and your app logs will appear here.")
	}

	err = sys.Run()
	if o11y.IsWarning(err) {
		fmt.Println("terminated signal received: shutting down")
		return nil
	}
	return err
}

func loadGRPC(port int, sys *system.System) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return err
	}
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, health.NewServer())

	sys.AddService(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			srv.GracefulStop()
		}()
		return srv.Serve(ln)
	})
	return nil
}

// loadApp starts the application with the environment a dapr sidecar gives it, stopping it
// when the sidecar stops.
func (c *runCmd) loadApp(sys *system.System) error {
	//#nosec:G204 // running the given application is the point
	cmd := exec.Command(c.Command[0], c.Command[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"APP_ID="+c.AppID,
		"APP_PORT="+strconv.Itoa(c.AppPort),
		"DAPR_HTTP_PORT="+strconv.Itoa(c.DaprHTTPPort),
		"DAPR_GRPC_PORT="+strconv.Itoa(c.DaprGRPCPort),
	)
	if err := cmd.Start(); err != nil {
		return err
	}

	exited := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		close(exited)
	}()

	sys.AddService(func(ctx context.Context) error {
		select {
		case <-exited:
			return fmt.Errorf("app exited: %v", waitErr)
		case <-ctx.Done():
			return nil
		}
	})
	sys.AddCleanup(func(context.Context) error {
		_ = cmd.Process.Signal(syscall.SIGINT)
		select {
		case <-exited:
		case <-time.After(5 * time.Second):
			_ = cmd.Process.Kill()
		}
		return nil
	})
	return nil
}
