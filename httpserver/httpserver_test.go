package httpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/daprit/httpserver/ginrouter"
	"github.com/circleci/daprit/system"
	"github.com/circleci/daprit/testing/testcontext"
)

func TestNew(t *testing.T) {
	ctx, cancel := context.WithCancel(testcontext.Background())
	defer cancel()

	r := ginrouter.Default(ctx, "test-server")
	r.GET("/v1.0/healthz", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/hello/:name", func(c *gin.Context) {
		c.String(http.StatusOK, "hello %s!", c.Param("name"))
	})

	srv, err := New(ctx, Config{
		Name:    "test server",
		Addr:    "127.0.0.1:0",
		Handler: r,
	})
	assert.Assert(t, err)

	g, ctx := errgroup.WithContext(ctx)
	t.Cleanup(func() {
		assert.Check(t, g.Wait())
	})
	g.Go(func() error {
		return srv.Serve(ctx)
	})

	body, status := get(t, srv.Addr(), "hello/world")
	assert.Check(t, cmp.Equal(status, http.StatusOK))
	assert.Check(t, cmp.Equal(body, "hello world!"))

	_, status = get(t, srv.Addr(), "v1.0/healthz")
	assert.Check(t, cmp.Equal(status, http.StatusNoContent))

	_, status = get(t, srv.Addr(), "missing")
	assert.Check(t, cmp.Equal(status, http.StatusNotFound))
}

func TestNew_AddressInUse(t *testing.T) {
	ctx := testcontext.Background()
	first, err := New(ctx, Config{Name: "first", Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()})
	assert.Assert(t, err)

	_, err = Load(ctx, Config{Name: "second", Addr: first.Addr(), Handler: http.NotFoundHandler()}, system.New(ctx))
	assert.Check(t, cmp.ErrorContains(err, `error starting "second" server`))
}

func get(t *testing.T, addr, path string) (string, int) {
	t.Helper()

	r, err := http.Get(fmt.Sprintf("http://%s/%s", addr, path))
	assert.Assert(t, err)
	defer func() {
		assert.Check(t, r.Body.Close())
	}()

	b, err := io.ReadAll(r.Body)
	assert.Assert(t, err)
	return string(b), r.StatusCode
}
