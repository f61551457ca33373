package testcontext

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/circleci/daprit/o11y"
)

func TestBackground_HasProvider(t *testing.T) {
	ctx := Background()
	ctx, span := o11y.StartSpan(ctx, "testcontext: span")
	span.AddField("answer", 42)
	span.End()

	assert.Check(t, o11y.FromContext(ctx).GetSpan(ctx) != nil)
	assert.Check(t, o11y.FromContext(ctx).MetricsProvider().Gauge("gauge", 1, nil, 1))
}
