package transport

import (
	"context"
	"testing"
)

func TestEndpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := FromContext(ctx); got != EndpointUnknown {
		t.Fatalf("FromContext(empty) = %v, want unknown", got)
	}

	for _, e := range []Endpoint{EndpointTerminal, EndpointObserver} {
		if got := FromContext(WithEndpoint(ctx, e)); got != e {
			t.Errorf("FromContext = %v, want %v", got, e)
		}
	}
}

func TestEndpointString(t *testing.T) {
	cases := map[Endpoint]string{
		EndpointUnknown:  "unknown",
		EndpointTerminal: "terminal",
		EndpointObserver: "observer",
		Endpoint(99):     "unknown",
	}
	for e, want := range cases {
		if got := e.String(); got != want {
			t.Errorf("Endpoint(%d).String() = %q, want %q", int(e), got, want)
		}
	}
}
