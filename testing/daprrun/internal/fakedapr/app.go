package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/circleci/daprit/httpserver"
	"github.com/circleci/daprit/httpserver/ginrouter"
	"github.com/circleci/daprit/o11y"
	"github.com/circleci/daprit/system"
)

type appCmd struct {
	Port    int    `name:"port" env:"APP_PORT" help:"Port to serve on, none when zero."`
	Message string `name:"message" default:"app is ready" help:"Printed once serving."`
}

func (c *appCmd) Run(ctx context.Context) (err error) {
	sys := system.New(ctx)
	defer sys.Cleanup(ctx)

	if c.Port > 0 {
		r := ginrouter.Default(ctx, "fakeapp")
		r.GET("/healthz", func(gc *gin.Context) {
			gc.Status(http.StatusOK)
		})
		r.GET("/env", func(gc *gin.Context) {
			gc.JSON(http.StatusOK, gin.H{
				"app_id":         os.Getenv("APP_ID"),
				"dapr_http_port": os.Getenv("DAPR_HTTP_PORT"),
			})
		})
		_, err = httpserver.Load(ctx, httpserver.Config{
			Name:    "fakeapp",
			Addr:    net.JoinHostPort("127.0.0.1", strconv.Itoa(c.Port)),
			Handler: r,
		}, sys)
		if err != nil {
			return err
		}
	}

	fmt.Println(c.Message)
	err = sys.Run()
	if o11y.IsWarning(err) {
		return nil
	}
	return err
}
