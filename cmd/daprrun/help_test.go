package main

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/daprit/testing/daprrun"
	"github.com/circleci/daprit/testing/kongtest"
)

func TestHelp(t *testing.T) {
	help := kongtest.Help(t, &cli{})
	for _, want := range []string{"start", "stop", "status", "--o11y-format", "$DAPRRUN_O11Y_FORMAT"} {
		assert.Check(t, cmp.Contains(help, want))
	}
}

func TestParse_Start(t *testing.T) {
	c := cli{}
	kctx, err := kongtest.Parse(t, &c, []string{
		"start", "--test-name", "TestOrders",
		"--service-name", "orders",
		"--app-command", "./orders --port {{app_port}}",
		"--app-port", "8080", "--http-port", "3500",
	})
	assert.NilError(t, err)
	assert.Check(t, cmp.Equal(kctx.Command(), "start"))
	assert.Check(t, cmp.Equal(c.Start.MaxWait, time.Minute))
	assert.Check(t, cmp.Equal(c.Start.DaprBinary, "dapr"))
	assert.Check(t, cmp.Equal(c.Start.identity(), "TestOrders_orders"))

	ps, err := c.Start.ports()
	assert.NilError(t, err)
	assert.Check(t, cmp.Equal(ps.String(), "app=8080 http=3500"))

	r, err := c.Start.builder().Build()
	assert.NilError(t, err)
	assert.Check(t, cmp.Equal(r.Identity(), "TestOrders_orders"))
	assert.Check(t, cmp.Equal(r.Ports().String(), "app=8080 http=3500"))
}

func TestParse_StartEnv(t *testing.T) {
	t.Setenv("DAPRRUN_TEST_NAME", "TestEnv")
	t.Setenv("DAPRRUN_GRPC_PORT", "50001")
	t.Setenv("DAPRRUN_MAX_WAIT", "5s")

	c := cli{}
	_, err := kongtest.Parse(t, &c, []string{"start"})
	assert.NilError(t, err)
	assert.Check(t, cmp.Equal(c.Start.TestName, "TestEnv"))
	assert.Check(t, cmp.Equal(c.Start.GRPCPort, 50001))
	assert.Check(t, cmp.Equal(c.Start.MaxWait, 5*time.Second))

	r, err := c.Start.builder().Build()
	assert.NilError(t, err)
	assert.Check(t, cmp.Equal(r.Identity(), "TestEnv"))
	assert.Check(t, cmp.Equal(r.Use().Protocol(), "grpc"))
}

func TestParse_StartBadPort(t *testing.T) {
	c := cli{}
	_, err := kongtest.Parse(t, &c, []string{"start", "--test-name", "T", "--http-port", "70000"})
	assert.NilError(t, err)

	_, err = c.Start.builder().Build()
	assert.Check(t, cmp.ErrorIs(err, daprrun.ErrInvalidPort))
}

func TestParse_RequiresTestName(t *testing.T) {
	c := cli{}
	_, err := kongtest.Parse(t, &c, []string{"stop"})
	assert.Check(t, cmp.ErrorContains(err, "--test-name"))
}

func TestStopConfig(t *testing.T) {
	c := cli{}
	_, err := kongtest.Parse(t, &c, []string{"stop", "--test-name", "T", "--service-name", "svc", "--verbose"})
	assert.NilError(t, err)

	cfg := c.Stop.config()
	assert.Check(t, cmp.Equal(cfg.TestName, "T"))
	assert.Check(t, cmp.Equal(cfg.Service.Name, "svc"))
	assert.Check(t, cfg.Output != nil)
	assert.Check(t, cmp.Equal(cfg.ComponentsPath, "./components"))
}
