package daprrun

import (
	"errors"
	"sort"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/daprit/testing/testcontext"
)

func TestBuilder_Build(t *testing.T) {
	ports := FixedPorts(mustPorts(t, WithAppPort(8080), WithHTTPPort(3500)))
	dapr := newScriptedDapr()

	r, err := NewBuilder("TestOrders", ports, "orders ready", time.Minute).
		WithService(Service{Name: "OrderService", Command: "./orders --port {{app_port}}"}).
		WithConfig(func(c *Config) {
			c.Runner = dapr
			c.Dialer = &scriptedDialer{}
		}).
		Build()
	assert.NilError(t, err)

	assert.Check(t, cmp.Equal(r.Identity(), "TestOrders_OrderService"))
	assert.Check(t, cmp.Equal(r.cmds.start.Marker, "orders ready"))
	assert.Check(t, cmp.Equal(r.cmds.start.Line,
		"dapr run --app-id TestOrders_OrderService --components-path ./components "+
			"--app-port 8080 --dapr-http-port 3500 -- ./orders --port 8080"))
	assert.Check(t, cmp.Equal(r.cfg.MaxWait, time.Minute))
}

func TestBuilder_PortSupplierFails(t *testing.T) {
	boom := errors.New("no free ports")
	_, err := NewBuilder("TestOrders", func() (PortSet, error) { return PortSet{}, boom }, "", time.Minute).Build()
	assert.Check(t, errors.Is(err, boom))
}

func TestBuilder_SplitBuild(t *testing.T) {
	ctx := testcontext.Background()
	dapr := newScriptedDapr()
	dialer := &scriptedDialer{}

	split, err := NewBuilder("TestOrders", FixedPorts(mustPorts(t, WithAppPort(8080), WithHTTPPort(3500))),
		"orders ready", time.Minute).
		WithService(Service{Name: "OrderService", Command: "./orders --port {{app_port}}"}).
		WithConfig(func(c *Config) {
			c.Runner = dapr
			c.Dialer = dialer
			c.PollInterval = 10 * time.Millisecond
		}).
		SplitBuild()
	assert.NilError(t, err)

	assert.Check(t, cmp.Equal(split.App.Identity(), "TestOrders_OrderService"))
	assert.Check(t, cmp.Equal(split.Sidecar.Identity(), "TestOrders"))
	assert.Check(t, cmp.Equal(split.App.cmd.Line, "./orders --port 8080"))
	assert.Check(t, cmp.Equal(split.App.cmd.Marker, "orders ready"))
	assert.Check(t, cmp.Equal(split.Sidecar.cmds.start.Marker, SidecarUpMessage))
	assert.Check(t, cmp.Equal(split.Sidecar.cmds.start.Line,
		"dapr run --app-id TestOrders --components-path ./components --app-port 8080 --dapr-http-port 3500"))
	assert.Check(t, cmp.Equal(split.Sidecar.cmds.stop.Line, "dapr stop --app-id TestOrders"))
	assert.Check(t, cmp.Equal(split.Sidecar.cmds.list.Marker, "TestOrders"))

	assert.NilError(t, split.Start(ctx))
	assert.Check(t, split.App.Started())
	assert.Check(t, split.Sidecar.Started())

	dialed := dialer.addresses()
	sort.Strings(dialed)
	assert.Check(t, cmp.DeepEqual(dialed, []string{"127.0.0.1:3500", "127.0.0.1:8080", "127.0.0.1:8080"}))

	res := split.Stop(ctx)
	assert.Check(t, res.OK(), res.Err)
	assert.Check(t, cmp.Equal(split.Sidecar.State(), StateStopped))

	t.Run("restart the app alone", func(t *testing.T) {
		assert.NilError(t, split.App.Start(ctx))
		assert.Check(t, split.App.Stop(ctx).OK())
	})
}

func TestBuilder_SplitBuildNeedsService(t *testing.T) {
	_, err := NewBuilder("TestOrders", nil, "", time.Minute).SplitBuild()
	assert.Check(t, cmp.ErrorContains(err, "needs a service"))
}
