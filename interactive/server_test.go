package interactive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/KaefGAMES/StreamingClientLibrary/socket"
)

type request struct {
	Type   string          `json:"type"`
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// methodFunc answers one request with a result or an error object.
type methodFunc func(params json.RawMessage) (result any, errObj map[string]any)

// fakeServer is an interactive service over httptest. It greets with hello,
// acknowledges ready with onReady and answers the methods it was given.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	methods map[string]methodFunc
	headers http.Header
	calls   []request
	conn    *websocket.Conn
	connCh  chan struct{}
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{t: t, methods: make(map[string]methodFunc), connCh: make(chan struct{}, 1)}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) URL() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http") + "/gameClient"
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		fs.t.Errorf("failed to upgrade to websocket: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	ctx := r.Context()

	fs.mu.Lock()
	fs.headers = r.Header.Clone()
	fs.conn = conn
	fs.mu.Unlock()
	select {
	case fs.connCh <- struct{}{}:
	default:
	}

	fs.write(ctx, map[string]any{"type": "method", "method": "hello", "params": map[string]any{}, "discard": true})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req request
		if err := json.Unmarshal(data, &req); err != nil || req.Type != "method" {
			continue
		}

		fs.mu.Lock()
		fs.calls = append(fs.calls, req)
		fn := fs.methods[req.Method]
		fs.mu.Unlock()

		switch {
		case req.Method == "ready":
			fs.write(ctx, map[string]any{"type": "reply", "id": req.ID, "result": nil, "error": nil})
			fs.write(ctx, map[string]any{"type": "method", "method": "onReady", "params": map[string]any{"isReady": true}, "discard": true})
		case fn != nil:
			result, errObj := fn(req.Params)
			fs.write(ctx, map[string]any{"type": "reply", "id": req.ID, "result": result, "error": errObj})
		case req.ID != 0:
			fs.write(ctx, map[string]any{"type": "reply", "id": req.ID, "result": map[string]any{}, "error": nil})
		}
	}
}

func (fs *fakeServer) write(ctx context.Context, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fs.t.Errorf("marshal: %v", err)
		return
	}
	fs.mu.Lock()
	conn := fs.conn
	fs.mu.Unlock()
	_ = conn.Write(ctx, websocket.MessageText, data)
}

func (fs *fakeServer) handleMethod(method string, fn methodFunc) {
	fs.mu.Lock()
	fs.methods[method] = fn
	fs.mu.Unlock()
}

// push sends an unsolicited method packet to the connected client.
func (fs *fakeServer) push(method string, params any) {
	fs.write(context.Background(), map[string]any{"type": "method", "method": method, "params": params, "discard": true})
}

func (fs *fakeServer) lastCall(method string) (request, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := len(fs.calls) - 1; i >= 0; i-- {
		if fs.calls[i].Method == method {
			return fs.calls[i], true
		}
	}
	return request{}, false
}

func (fs *fakeServer) header(key string) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.headers.Get(key)
}

// readyClient connects a client to fs and completes Ready.
func readyClient(t *testing.T, fs *fakeServer, opts ...socket.Option) *Client {
	t.Helper()
	c, err := New([]string{fs.URL()}, "token", "1234", opts...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	if err := c.Ready(ctx); err != nil {
		t.Fatalf("Ready error: %v", err)
	}
	return c
}
