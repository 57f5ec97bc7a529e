package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"
)

// mockTransport implements Transport for testing. The test plays the server:
// it pushes frames with push and reads what the client sent with next.
type mockTransport struct {
	in  chan []byte // server -> client
	out chan []byte // client -> server

	closeOnce sync.Once
	closed    chan struct{}

	mu      sync.Mutex
	sendErr error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		in:     make(chan []byte, 100),
		out:    make(chan []byte, 100),
		closed: make(chan struct{}),
	}
}

func (m *mockTransport) Send(ctx context.Context, data []byte) error {
	m.mu.Lock()
	err := m.sendErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case <-m.closed:
		return &ConnectionError{Op: "write", Err: net.ErrClosed}
	default:
	}
	select {
	case m.out <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		return nil, &ConnectionError{Op: "read", Err: net.ErrClosed}
	case data := <-m.in:
		return data, nil
	}
}

// failSends makes every later Send return err.
func (m *mockTransport) failSends(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

func (m *mockTransport) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockTransport) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// push sends v to the client as a JSON frame.
func (m *mockTransport) push(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal push: %v", err)
	}
	m.in <- data
}

// send pushes v without a test handle, for use from server goroutines.
func (m *mockTransport) send(v any) {
	data, _ := json.Marshal(v)
	select {
	case m.in <- data:
	case <-m.closed:
	}
}

func (m *mockTransport) pushRaw(data string) {
	m.in <- []byte(data)
}

// next waits for the next packet the client sent.
func (m *mockTransport) next(t *testing.T, timeout time.Duration) *MethodPacket {
	t.Helper()
	select {
	case data := <-m.out:
		var w wirePacket
		if err := json.Unmarshal(data, &w); err != nil {
			t.Fatalf("client sent invalid json: %v", err)
		}
		return &MethodPacket{ID: w.ID, Method: w.Method, Params: w.Params, Arguments: w.Arguments, Discard: w.Discard}
	case <-time.After(timeout):
		t.Fatal("timeout waiting for request")
		return nil
	}
}

func (m *mockTransport) reply(t *testing.T, id uint64, result any) {
	t.Helper()
	m.push(t, map[string]any{"type": "reply", "id": id, "result": result})
}

func hello() map[string]any {
	return map[string]any{"type": "method", "method": "hello", "params": map[string]any{}}
}

// serveReady answers "ready" like the interactive service, then answers every
// other method with an empty result, until the transport closes.
func serveReady(tr *mockTransport) {
	go func() {
		for {
			select {
			case <-tr.closed:
				return
			case data := <-tr.out:
				p, err := Decode(data)
				if err != nil {
					continue
				}
				m, ok := p.(*MethodPacket)
				if !ok || m.Discard {
					continue
				}
				tr.send(map[string]any{"type": "reply", "id": m.ID, "result": map[string]any{}})
				if m.Method == "ready" {
					tr.send(map[string]any{"type": "method", "method": "onReady", "params": map[string]any{"isReady": true}})
				}
			}
		}
	}()
}

type dialRecord struct {
	url    string
	header http.Header
}

// mockDialer hands out mock transports. Each new transport greets the client
// with hello when autoHello is set and is published on conns.
type mockDialer struct {
	autoHello bool
	autoReady bool

	mu    sync.Mutex
	dials []dialRecord
	// failAfter makes every dial after the first failAfter dials fail when > 0.
	failAfter int
	// gate, when set, must yield a value before each dial after the first.
	gate chan struct{}

	conns chan *mockTransport
}

func newMockDialer() *mockDialer {
	return &mockDialer{autoHello: true, conns: make(chan *mockTransport, 16)}
}

func (d *mockDialer) Dial(ctx context.Context, url string, header http.Header) (Transport, error) {
	d.mu.Lock()
	d.dials = append(d.dials, dialRecord{url: url, header: header.Clone()})
	n := len(d.dials)
	gate := d.gate
	failAfter := d.failAfter
	d.mu.Unlock()

	if n > 1 && gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failAfter > 0 && n > failAfter {
		return nil, errors.New("connection refused")
	}

	tr := newMockTransport()
	if d.autoHello {
		tr.send(hello())
	}
	if d.autoReady {
		serveReady(tr)
	}
	d.conns <- tr
	return tr, nil
}

func (d *mockDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *mockDialer) lastDial() dialRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[len(d.dials)-1]
}

func (d *mockDialer) conn(t *testing.T) *mockTransport {
	t.Helper()
	select {
	case tr := <-d.conns:
		return tr
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for dial")
		return nil
	}
}

func testPool(t *testing.T) *EndpointPool {
	t.Helper()
	pool, err := NewEndpointPool("wss://one.example.com/gameClient", "wss://two.example.com/gameClient")
	if err != nil {
		t.Fatalf("NewEndpointPool error: %v", err)
	}
	return pool
}

// stateRecorder collects state transitions reported by WithOnStateChange.
type stateRecorder struct {
	ch chan ConnectionState
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{ch: make(chan ConnectionState, 64)}
}

func (r *stateRecorder) option() Option {
	return WithOnStateChange(func(sc StateChange) {
		select {
		case r.ch <- sc.To:
		default:
		}
	})
}

func (r *stateRecorder) waitFor(t *testing.T, want ConnectionState, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case got := <-r.ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for state %s", want)
		}
	}
}
