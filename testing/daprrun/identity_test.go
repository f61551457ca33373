package daprrun

import (
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestIdentity(t *testing.T) {
	tests := []struct {
		testName    string
		serviceName string
		want        string
	}{
		{testName: "TestOrders", want: "TestOrders"},
		{testName: "TestOrders", serviceName: "OrderService", want: "TestOrders_OrderService"},
		{testName: "TestPayments", serviceName: "OrderService", want: "TestPayments_OrderService"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Check(t, cmp.Equal(Identity(tt.testName, tt.serviceName), tt.want))
			assert.Check(t, cmp.Equal(Identity(tt.testName, tt.serviceName), Identity(tt.testName, tt.serviceName)))
		})
	}
}

func TestIdentity_Distinct(t *testing.T) {
	seen := map[string]bool{}
	for _, in := range [][2]string{
		{"TestA", ""},
		{"TestB", ""},
		{"TestA", "svc"},
		{"TestA", "other"},
		{"TestB", "svc"},
	} {
		id := Identity(in[0], in[1])
		assert.Check(t, !seen[id], "duplicate identity %q", id)
		seen[id] = true
	}
}
