package socket

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Transport is an open bidirectional message stream.
// Implementations must allow Send and Close concurrently with Receive.
// Receive returning an error signals that the stream is closed.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string, header http.Header) (Transport, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, url string, header http.Header) (Transport, error) {
	return f(ctx, url, header)
}

const defaultReadLimit = 32 * 1024 * 1024 // 32MB

// WebSocketDialer dials WebSocket transports.
type WebSocketDialer struct {
	// HTTPClient is the HTTP client used for the handshake.
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// ReadLimit caps the size of one inbound message. Zero means 32MB.
	ReadLimit int64

	// PingInterval sends a WebSocket ping this often. Zero disables pings.
	PingInterval time.Duration
}

// Dial connects to url with the given handshake headers.
func (d *WebSocketDialer) Dial(ctx context.Context, url string, header http.Header) (Transport, error) {
	dialOpts := &websocket.DialOptions{
		HTTPHeader: header,
		HTTPClient: d.HTTPClient,
	}

	conn, _, err := websocket.Dial(ctx, url, dialOpts)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", URL: url, Err: err}
	}

	limit := d.ReadLimit
	if limit == 0 {
		limit = defaultReadLimit
	}
	conn.SetReadLimit(limit)

	t := &wsTransport{conn: conn, closedCh: make(chan struct{})}
	if d.PingInterval > 0 {
		go t.pingLoop(d.PingInterval)
	}
	return t, nil
}

// wsTransport implements Transport over WebSocket.
type wsTransport struct {
	conn *websocket.Conn

	mu       sync.Mutex
	closed   bool
	closedCh chan struct{}
}

// Send writes one text message.
func (t *wsTransport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &ConnectionError{Op: "write", Err: net.ErrClosed}
	}
	if err := t.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// Receive reads the next text message. Binary messages are skipped.
func (t *wsTransport) Receive(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return nil, &ConnectionError{Op: "read", Err: net.ErrClosed}
			}
			return nil, &ConnectionError{Op: "read", Err: err}
		}
		if typ != websocket.MessageText {
			continue
		}
		return data, nil
	}
}

// Close closes the transport. It is safe to call more than once.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	close(t.closedCh)

	return t.conn.Close(websocket.StatusNormalClosure, "")
}

func (t *wsTransport) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.closedCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := t.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
