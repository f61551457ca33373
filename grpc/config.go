// Package grpc dials gRPC connections to a Dapr sidecar with retrying defaults and o11y
// spans around each unary call.
package grpc

import "fmt"

// DaprService is the runtime API exposed on the sidecar's gRPC port.
const DaprService = "dapr.proto.runtime.v1.Dapr"

// ServiceConfig returns a JSON-encoded service config retrying unavailable calls to the named
// service (e.g. "package.ServiceName").
func ServiceConfig(serviceName string) string {
	return fmt.Sprintf(serviceConfigJSON, serviceName)
}

const serviceConfigJSON = `
{
  "methodConfig": [
    {
      "name": [ { "service": "%s" } ],
      "retryPolicy": {
        "maxAttempts": 4,
        "initialBackoff": "0.1s",
        "maxBackoff": "1s",
        "backoffMultiplier": 2,
        "retryableStatusCodes": [ "UNAVAILABLE" ]
      }
    }
  ]
}
`
