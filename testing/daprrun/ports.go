package daprrun

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidPort = errors.New("invalid port")

// PortSet holds the optional ports a run exposes. The zero value exposes nothing.
type PortSet struct {
	app  optionalPort
	http optionalPort
	grpc optionalPort
}

type optionalPort struct {
	port int
	ok   bool
}

// PortOption sets one port of a PortSet.
type PortOption func(*PortSet) error

func WithAppPort(port int) PortOption {
	return func(ps *PortSet) error {
		return set(&ps.app, "app", port)
	}
}

func WithHTTPPort(port int) PortOption {
	return func(ps *PortSet) error {
		return set(&ps.http, "http", port)
	}
}

func WithGRPCPort(port int) PortOption {
	return func(ps *PortSet) error {
		return set(&ps.grpc, "grpc", port)
	}
}

func set(p *optionalPort, name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: %s port %d", ErrInvalidPort, name, port)
	}
	*p = optionalPort{port: port, ok: true}
	return nil
}

// NewPortSet returns a PortSet with the given ports set. Ports need not be distinct.
func NewPortSet(opts ...PortOption) (PortSet, error) {
	ps := PortSet{}
	for _, opt := range opts {
		if err := opt(&ps); err != nil {
			return PortSet{}, err
		}
	}
	return ps, nil
}

// App returns the application port, if the run exposes one.
func (ps PortSet) App() (int, bool) {
	return ps.app.port, ps.app.ok
}

// HTTP returns the sidecar HTTP API port, if the run exposes one.
func (ps PortSet) HTTP() (int, bool) {
	return ps.http.port, ps.http.ok
}

// GRPC returns the sidecar gRPC API port, if the run exposes one.
func (ps PortSet) GRPC() (int, bool) {
	return ps.grpc.port, ps.grpc.ok
}

func (ps PortSet) String() string {
	parts := make([]string, 0, 3)
	for _, p := range ps.ordered() {
		parts = append(parts, p.name+"="+strconv.Itoa(p.port))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

type namedPort struct {
	name string
	port int
}

// ordered returns the set ports in probe order: app, then HTTP, then gRPC.
func (ps PortSet) ordered() []namedPort {
	var ports []namedPort
	for _, p := range []struct {
		name string
		optionalPort
	}{{"app", ps.app}, {"http", ps.http}, {"grpc", ps.grpc}} {
		if p.ok {
			ports = append(ports, namedPort{name: p.name, port: p.port})
		}
	}
	return ports
}

// PortSupplier provides the ports for a new run. Allocation is up to the caller.
type PortSupplier func() (PortSet, error)

// FixedPorts supplies the same PortSet to every run.
func FixedPorts(ps PortSet) PortSupplier {
	return func() (PortSet, error) {
		return ps, nil
	}
}
