// Package transport tags a context with the endpoint a frame arrived on.
package transport

import "context"

// Endpoint represents which listener path a connection was accepted on.
type Endpoint int

const (
	// EndpointUnknown represents an untagged context.
	EndpointUnknown Endpoint = iota
	// EndpointTerminal is the simulated device channel.
	EndpointTerminal
	// EndpointObserver is the monitoring/control channel.
	EndpointObserver
)

// String returns the string representation of an endpoint.
func (e Endpoint) String() string {
	switch e {
	case EndpointTerminal:
		return "terminal"
	case EndpointObserver:
		return "observer"
	default:
		return "unknown"
	}
}

// endpointKey is the context key for the endpoint.
type endpointKey struct{}

// WithEndpoint returns a new context with the endpoint set.
func WithEndpoint(ctx context.Context, e Endpoint) context.Context {
	return context.WithValue(ctx, endpointKey{}, e)
}

// FromContext retrieves the endpoint from the context.
// Returns EndpointUnknown if not set.
func FromContext(ctx context.Context) Endpoint {
	if e, ok := ctx.Value(endpointKey{}).(Endpoint); ok {
		return e
	}
	return EndpointUnknown
}
