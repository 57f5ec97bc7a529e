package socket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Option configures a Client.
type Option func(*clientConfig)

// ReadyFunc performs the readiness step after a successful handshake.
type ReadyFunc func(ctx context.Context, c *Client) error

// StateChange describes one connection state transition.
type StateChange struct {
	From      ConnectionState
	To        ConnectionState
	SessionID string
	Endpoint  string
}

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadyTimeout   = 10 * time.Second
)

type clientConfig struct {
	logger         *slog.Logger
	dialer         Dialer
	header         http.Header
	authToken      string
	connectTimeout time.Duration
	readyTimeout   time.Duration
	requestTimeout time.Duration
	handshake      func(Packet) bool
	ready          ReadyFunc
	metrics        *Metrics

	reconnect      bool
	reconnectLimit rate.Limit
	reconnectBurst int
	maxReconnects  int

	onStateChange func(StateChange)
	onSend        func(*MethodPacket)
	onReceive     func(Packet)
}

func defaultConfig() clientConfig {
	return clientConfig{
		dialer:         &WebSocketDialer{PingInterval: 20 * time.Second},
		header:         http.Header{},
		connectTimeout: defaultConnectTimeout,
		readyTimeout:   defaultReadyTimeout,
		handshake:      isHello,
		ready:          readyHandshake,
		reconnect:      true,
		reconnectLimit: rate.Every(2 * time.Second),
		reconnectBurst: 1,
	}
}

// WithLogger sets a structured logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithDialer replaces the default WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *clientConfig) {
		c.dialer = d
	}
}

// WithHeader adds a header to every connection handshake.
func WithHeader(key, value string) Option {
	return func(c *clientConfig) {
		c.header.Add(key, value)
	}
}

// WithAuthToken sends token as a bearer Authorization header.
func WithAuthToken(token string) Option {
	return func(c *clientConfig) {
		c.authToken = token
	}
}

// WithConnectTimeout bounds how long Connect waits for the handshake.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.connectTimeout = d
	}
}

// WithReadyTimeout bounds how long Ready waits for the acknowledgement.
func WithReadyTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.readyTimeout = d
	}
}

// WithRequestTimeout applies a default timeout to every Call.
// Zero leaves requests bounded only by their context.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.requestTimeout = d
	}
}

// WithHandshake sets the predicate that recognizes the handshake packet.
// The default accepts the "hello" method.
func WithHandshake(match func(Packet) bool) Option {
	return func(c *clientConfig) {
		c.handshake = match
	}
}

// WithReadyFunc replaces the readiness step run by Ready.
func WithReadyFunc(fn ReadyFunc) Option {
	return func(c *clientConfig) {
		c.ready = fn
	}
}

// WithReconnectPolicy paces automatic reconnect attempts with a token bucket
// of the given limit and burst, giving up after maxAttempts consecutive
// failures. A maxAttempts of 0 retries forever.
func WithReconnectPolicy(limit rate.Limit, burst, maxAttempts int) Option {
	return func(c *clientConfig) {
		c.reconnect = true
		c.reconnectLimit = limit
		c.reconnectBurst = burst
		c.maxReconnects = maxAttempts
	}
}

// WithoutReconnect disables automatic reconnection.
func WithoutReconnect() Option {
	return func(c *clientConfig) {
		c.reconnect = false
	}
}

// WithMetrics reports client activity to m.
func WithMetrics(m *Metrics) Option {
	return func(c *clientConfig) {
		c.metrics = m
	}
}

// WithOnStateChange sets a callback invoked after every state transition.
// It runs while the client's state lock is held and must not call back into the client.
func WithOnStateChange(fn func(StateChange)) Option {
	return func(c *clientConfig) {
		c.onStateChange = fn
	}
}

// WithOnSend sets a callback invoked before each method packet is sent.
func WithOnSend(fn func(*MethodPacket)) Option {
	return func(c *clientConfig) {
		c.onSend = fn
	}
}

// WithOnReceive sets a callback invoked after each packet is decoded.
func WithOnReceive(fn func(Packet)) Option {
	return func(c *clientConfig) {
		c.onReceive = fn
	}
}
