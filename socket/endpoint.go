package socket

import (
	"fmt"
	"math/rand/v2"
	"net/url"
)

// EndpointPool is an immutable set of candidate connection URLs.
type EndpointPool struct {
	urls []string
}

// NewEndpointPool validates urls and returns a pool over a copy of them.
// Every URL must use the ws or wss scheme.
func NewEndpointPool(urls ...string) (*EndpointPool, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	cp := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("socket: endpoint %q: %w", raw, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return nil, fmt.Errorf("socket: endpoint %q: scheme must be ws or wss", raw)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("socket: endpoint %q: missing host", raw)
		}
		cp = append(cp, raw)
	}
	return &EndpointPool{urls: cp}, nil
}

// Pick returns an endpoint chosen uniformly at random. Every call is an
// independent draw.
func (p *EndpointPool) Pick() string {
	return p.urls[rand.IntN(len(p.urls))]
}

// URLs returns a copy of the pool's endpoints in their original order.
func (p *EndpointPool) URLs() []string {
	out := make([]string, len(p.urls))
	copy(out, p.urls)
	return out
}

// Len returns the number of endpoints.
func (p *EndpointPool) Len() int {
	return len(p.urls)
}
