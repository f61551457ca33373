// Package ginrouter builds gin engines that trace every request.
package ginrouter

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/circleci/daprit/o11y"
)

var once sync.Once

func Default(ctx context.Context, serverName string) *gin.Engine {
	once.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	r := gin.New()
	r.Use(middleware(o11y.FromContext(ctx), serverName), gin.Recovery())
	r.UseRawPath = true
	return r
}

func middleware(provider o11y.Provider, serverName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := o11y.WithProvider(c.Request.Context(), provider)
		ctx, span := provider.StartSpan(ctx, serverName+" "+c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.AddRawField("http.server_name", serverName)
		span.AddRawField("http.method", c.Request.Method)
		span.AddRawField("http.route", c.FullPath())
		span.AddRawField("http.status_code", c.Writer.Status())
	}
}
