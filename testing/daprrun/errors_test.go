package daprrun

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestStartError_Error(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  StartError
		want string
	}{
		{
			name: "port zero",
			err:  StartError{Identity: "TestOrders", Step: StepProbePort, Port: 0, Err: cause},
			want: "run TestOrders failed to become ready at step probe-port (port 0), last error: connection refused",
		},
		{
			name: "health check",
			err:  StartError{Identity: "TestOrders", Step: StepHealthCheck, Port: 3500, Err: cause},
			want: "run TestOrders failed to become ready at step health-check (port 3500), last error: connection refused",
		},
		{
			name: "no port",
			err:  StartError{Identity: "TestOrders", Step: StepConfirmListed, Err: cause},
			want: "run TestOrders failed to become ready at step confirm-listed, last error: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Check(t, cmp.Equal(tt.err.Error(), tt.want))
			assert.Check(t, errors.Is(&tt.err, cause))
		})
	}
}
