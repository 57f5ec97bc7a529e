package socket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Client maintains one persistent connection to a socket service.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	pool    *EndpointPool
	cfg     clientConfig
	pending *pendingTable
	events  *Dispatcher
	limiter *rate.Limiter

	ctx    context.Context // canceled by Close
	cancel context.CancelFunc

	// life is a one-slot lock serializing Connect, Ready and automatic
	// reconnect cycles. Waiters give up when their context is done.
	life chan struct{}

	mu           sync.RWMutex
	state        ConnectionState
	session      *session
	reconnecting bool
	reconnectGen uint64 // bumped for every reconnect loop started
	closed       bool
}

// session is one opened transport and its read loop.
type session struct {
	id        string
	endpoint  string
	transport Transport
	ctx       context.Context
	cancel    context.CancelFunc

	hello     chan struct{}
	helloOnce sync.Once

	done     chan struct{}
	doneOnce sync.Once
	err      error // valid after done is closed
}

func newSession(ctx context.Context, endpoint string, t Transport) *session {
	ctx, cancel := context.WithCancel(ctx)
	return &session{
		id:        uuid.NewString(),
		endpoint:  endpoint,
		transport: t,
		ctx:       ctx,
		cancel:    cancel,
		hello:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *session) finish(err error) {
	s.doneOnce.Do(func() {
		s.err = err
		close(s.done)
	})
	s.cancel()
}

// New creates a Client over pool. It does not connect; call Connect and then Ready.
func New(pool *EndpointPool, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		pool:    pool,
		cfg:     cfg,
		pending: newPendingTable(),
		events:  NewDispatcher(),
		limiter: rate.NewLimiter(cfg.reconnectLimit, cfg.reconnectBurst),
		life:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		state:   StateDisconnected,
	}
	c.events.onPanic = func(name string, recovered any) {
		c.log(slog.LevelWarn, "event handler panicked",
			slog.String("event", name),
			slog.Any("panic", recovered),
		)
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Endpoint returns the endpoint of the current connection, or "" when there is none.
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.endpoint
}

// Subscribe registers fn for unsolicited packets named name.
// Use AllEvents to receive every unsolicited packet.
func (c *Client) Subscribe(name string, fn Handler) (unsubscribe func()) {
	return c.events.Subscribe(name, fn)
}

// Connect opens a transport to a randomly chosen endpoint and waits for the
// handshake packet. It does not retry. ctx also bounds the wait for a
// reconnect cycle already in progress.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.lock(ctx); err != nil {
		return &ConnectError{Err: err}
	}
	defer c.unlock()
	return c.connect(ctx, StateDisconnected)
}

// Ready runs the readiness step on a connected client and moves it to StateReady.
func (c *Client) Ready(ctx context.Context) error {
	if err := c.lock(ctx); err != nil {
		return &ReadyError{Err: err}
	}
	defer c.unlock()
	return c.ready(ctx, false)
}

func (c *Client) lock(ctx context.Context) error {
	select {
	case c.life <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	}
}

func (c *Client) unlock() {
	<-c.life
}

// connect moves the client to StateConnected, or to failTo on failure.
func (c *Client) connect(ctx context.Context, failTo ConnectionState) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.live() {
		c.mu.Unlock()
		return nil
	}
	c.transition(StateConnecting)
	c.mu.Unlock()

	endpoint := c.pool.Pick()
	header := c.cfg.header.Clone()
	if c.cfg.authToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.authToken)
	}

	if c.cfg.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.connectTimeout)
		defer cancel()
	}

	t, err := c.cfg.dialer.Dial(ctx, endpoint, header)
	if err != nil {
		c.failConnect(nil, failTo)
		return &ConnectError{URL: endpoint, Err: err}
	}

	s := newSession(c.ctx, endpoint, t)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = t.Close()
		return ErrClosed
	}
	c.session = s
	c.mu.Unlock()

	c.log(slog.LevelDebug, "transport open, awaiting handshake",
		slog.String("session_id", s.id),
		slog.String("endpoint", endpoint),
	)
	go c.readLoop(s)

	select {
	case <-s.hello:
	case <-s.done:
		err = ErrDisconnected
	case <-ctx.Done():
		err = ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrHandshakeTimeout
		}
	}
	if err != nil {
		c.failConnect(s, failTo)
		return &ConnectError{URL: endpoint, Err: err}
	}

	c.mu.Lock()
	if c.closed || c.session != s {
		c.mu.Unlock()
		c.failConnect(s, failTo)
		return &ConnectError{URL: endpoint, Err: ErrDisconnected}
	}
	c.transition(StateConnected)
	c.mu.Unlock()
	return nil
}

// failConnect tears down a session that never became usable.
func (c *Client) failConnect(s *session, failTo ConnectionState) {
	c.mu.Lock()
	if s != nil && c.session == s {
		c.session = nil
	}
	if !c.closed {
		c.transition(failTo)
	}
	c.mu.Unlock()

	if s != nil {
		s.finish(ErrDisconnected)
		_ = s.transport.Close()
	}
}

func (c *Client) ready(ctx context.Context, reconnecting bool) error {
	c.mu.RLock()
	s, state, closed := c.session, c.state, c.closed
	c.mu.RUnlock()

	switch {
	case closed:
		return ErrClosed
	case state == StateReady:
		return nil
	case s == nil || state != StateConnected:
		return &ReadyError{Err: ErrNotConnected}
	}

	if c.cfg.readyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.readyTimeout)
		defer cancel()
	}

	err := c.cfg.ready(ctx, c)
	if err == nil {
		c.mu.Lock()
		if c.session == s && c.state == StateConnected {
			c.transition(StateReady)
		} else {
			err = ErrDisconnected
		}
		c.mu.Unlock()
	}
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = ErrReadyTimeout
	}
	if reconnecting {
		c.dropSession(s, StateReconnecting)
	}
	return &ReadyError{Err: err}
}

// readyHandshake sends "ready" and waits for the server's onReady push.
func readyHandshake(ctx context.Context, c *Client) error {
	s := c.currentSession()
	if s == nil {
		return ErrNotConnected
	}

	ack, release := c.events.await("onReady", func(payload json.RawMessage) bool {
		v, err := DecodePayload[struct {
			IsReady bool `json:"isReady"`
		}](payload)
		return err == nil && v.IsReady
	})
	defer release()

	if _, err := c.Call(ctx, "ready", map[string]bool{"isReady": true}); err != nil {
		return err
	}

	select {
	case <-ack:
		return nil
	case <-s.done:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isHello(p Packet) bool {
	m, ok := p.(*MethodPacket)
	return ok && m.Method == "hello"
}

// readLoop reads frames from the session transport until it fails.
func (c *Client) readLoop(s *session) {
	for {
		data, err := s.transport.Receive(s.ctx)
		if err != nil {
			c.sessionEnded(s, err)
			return
		}
		c.handleFrame(s, data)
	}
}

// handleFrame decodes one frame and routes it. Bad frames are dropped.
func (c *Client) handleFrame(s *session, data []byte) {
	p, err := Decode(data)
	if err != nil {
		c.cfg.metrics.decodeError()
		c.log(slog.LevelWarn, "dropped malformed frame",
			slog.String("session_id", s.id),
			slog.Any("error", err),
		)
		return
	}
	if p == nil {
		c.log(slog.LevelDebug, "ignored packet of unknown type", slog.String("session_id", s.id))
		return
	}

	c.cfg.metrics.received(p.Type())
	if c.cfg.onReceive != nil {
		c.cfg.onReceive(p)
	}

	if c.cfg.handshake(p) {
		s.helloOnce.Do(func() { close(s.hello) })
	}

	if reply, ok := p.(*ReplyPacket); ok {
		if _, ok := c.pending.resolve(reply); !ok {
			c.cfg.metrics.unmatchedReply()
			c.log(slog.LevelDebug, "dropped unmatched reply",
				slog.String("session_id", s.id),
				slog.Uint64("id", reply.ID),
			)
		}
		return
	}

	name, payload, ok := unsolicited(p)
	if !ok {
		return
	}
	c.log(slog.LevelDebug, "received event",
		slog.String("session_id", s.id),
		slog.String("event", name),
	)
	c.events.Dispatch(name, payload)
}

// sessionEnded handles the read loop of s stopping.
func (c *Client) sessionEnded(s *session, cause error) {
	s.finish(cause)
	_ = s.transport.Close()

	c.mu.Lock()
	if c.session != s {
		// Already detached by Close, a failed connect or a failed ready.
		c.mu.Unlock()
		return
	}
	c.session = nil

	reconnect := false
	var gen uint64
	switch c.state {
	case StateReady:
		if c.cfg.reconnect && !c.closed {
			c.transition(StateReconnecting)
			c.reconnecting = true
			c.reconnectGen++
			gen = c.reconnectGen
			reconnect = true
		} else {
			c.transition(StateDisconnected)
		}
	case StateConnected:
		if c.reconnecting {
			c.transition(StateReconnecting)
		} else {
			c.transition(StateDisconnected)
		}
	}
	c.mu.Unlock()

	n := c.pending.failAll(ErrDisconnected)
	c.cfg.metrics.setPending(0)
	c.log(slog.LevelInfo, "connection lost",
		slog.String("session_id", s.id),
		slog.String("endpoint", s.endpoint),
		slog.Int("failed_requests", n),
		slog.Any("error", cause),
	)

	if reconnect {
		go c.reconnectLoop(gen)
	}
}

// dropSession closes a live session that is no longer wanted.
func (c *Client) dropSession(s *session, to ConnectionState) {
	c.mu.Lock()
	if c.session == s {
		c.session = nil
		if !c.closed {
			c.transition(to)
		}
	}
	c.mu.Unlock()

	s.finish(ErrDisconnected)
	_ = s.transport.Close()
	c.pending.failAll(ErrDisconnected)
	c.cfg.metrics.setPending(0)
}

// reconnectLoop re-runs connect and ready until one cycle succeeds, the
// attempt cap is reached or the client is closed.
func (c *Client) reconnectLoop(gen uint64) {
	defer c.endReconnect(gen)
	if err := c.lock(c.ctx); err != nil {
		return
	}
	defer c.unlock()

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(c.ctx); err != nil {
			return
		}
		c.cfg.metrics.reconnectAttempt()
		c.log(slog.LevelInfo, "reconnecting", slog.Int("attempt", attempt))

		err := c.connect(c.ctx, StateReconnecting)
		if err == nil {
			err = c.ready(c.ctx, true)
		}
		if err == nil {
			c.log(slog.LevelInfo, "reconnected",
				slog.Int("attempt", attempt),
				slog.String("endpoint", c.Endpoint()),
			)
			return
		}
		if errors.Is(err, ErrClosed) {
			return
		}
		c.log(slog.LevelWarn, "reconnect attempt failed",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		if c.cfg.maxReconnects > 0 && attempt >= c.cfg.maxReconnects {
			c.mu.Lock()
			if !c.closed {
				c.transition(StateDisconnected)
			}
			c.mu.Unlock()
			c.log(slog.LevelError, "giving up reconnecting", slog.Int("attempts", attempt))
			return
		}
	}
}

// endReconnect clears the reconnecting flag unless a newer loop owns it.
func (c *Client) endReconnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reconnectGen == gen {
		c.reconnecting = false
	}
}

// Call sends method with params and waits for its reply, returning the
// reply payload.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	p, err := NewMethod(method, params)
	if err != nil {
		return nil, err
	}
	reply, err := c.Request(ctx, p)
	if err != nil {
		return nil, err
	}
	return reply.Payload(), nil
}

// CallArgs sends method with positional arguments and waits for its reply.
func (c *Client) CallArgs(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	reply, err := c.Request(ctx, &MethodPacket{Method: method, Arguments: args})
	if err != nil {
		return nil, err
	}
	return reply.Payload(), nil
}

// Request assigns p a fresh id, sends it and waits until its reply arrives,
// the connection drops or ctx is done. Exactly one of those resolves it.
func (c *Client) Request(ctx context.Context, p *MethodPacket) (*ReplyPacket, error) {
	s, err := c.liveSession()
	if err != nil {
		return nil, &RequestError{Method: p.Method, Err: err}
	}

	if c.cfg.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.requestTimeout)
		defer cancel()
	}

	p.ID = c.pending.nextID()
	p.Discard = false
	data, err := Encode(p)
	if err != nil {
		return nil, &RequestError{Method: p.Method, ID: p.ID, Err: err}
	}

	pr := c.pending.add(p.ID, p.Method)
	c.cfg.metrics.setPending(c.pending.len())

	if err := c.write(ctx, s, p, data); err != nil {
		c.pending.cancel(p.ID, err)
		return c.finishRequest(p, <-pr.ch, pr.created)
	}

	select {
	case out := <-pr.ch:
		return c.finishRequest(p, out, pr.created)
	case <-s.done:
		c.pending.cancel(p.ID, ErrDisconnected)
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrRequestTimeout
		}
		c.pending.cancel(p.ID, err)
	}
	// Whichever removal won has delivered the single outcome.
	return c.finishRequest(p, <-pr.ch, pr.created)
}

func (c *Client) finishRequest(p *MethodPacket, out outcome, started time.Time) (*ReplyPacket, error) {
	c.cfg.metrics.setPending(c.pending.len())

	var err error
	label := "ok"
	switch {
	case out.err != nil:
		err = out.err
		switch {
		case errors.Is(err, ErrRequestTimeout):
			label = "timeout"
		case errors.Is(err, ErrDisconnected), errors.Is(err, ErrClosed):
			label = "disconnected"
		default:
			label = "failed"
		}
	case out.reply.Error != nil:
		err = out.reply.Error
		label = "error"
	}
	c.cfg.metrics.requestDone(p.Method, label, started)

	if err != nil {
		return nil, &RequestError{Method: p.Method, ID: p.ID, Err: err}
	}
	return out.reply, nil
}

// Notify sends method with params marked discard: the server does not reply
// and no id is assigned.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	p, err := NewMethod(method, params)
	if err != nil {
		return err
	}
	p.Discard = true

	s, err := c.liveSession()
	if err != nil {
		return &SendError{Method: method, Err: err}
	}
	data, err := Encode(p)
	if err != nil {
		return &SendError{Method: method, Err: err}
	}
	return c.write(ctx, s, p, data)
}

func (c *Client) write(ctx context.Context, s *session, p *MethodPacket, data []byte) error {
	if c.cfg.onSend != nil {
		c.cfg.onSend(p)
	}
	c.log(slog.LevelDebug, "sending packet",
		slog.String("session_id", s.id),
		slog.String("method", p.Method),
		slog.Uint64("id", p.ID),
	)
	c.cfg.metrics.sent(p.Method)

	if err := s.transport.Send(ctx, data); err != nil {
		return &SendError{Method: p.Method, Err: c.sendFailure(ctx, err)}
	}
	return nil
}

// sendFailure tags a transport write error with the sentinel callers match
// on. A failed write means the connection is going away.
func (c *Client) sendFailure(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			ctxErr = ErrRequestTimeout
		}
		return errors.Join(ctxErr, err)
	}
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return errors.Join(ErrClosed, err)
	}
	return errors.Join(ErrDisconnected, err)
}

func (c *Client) liveSession() (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.session == nil || !c.state.live() {
		return nil, ErrDisconnected
	}
	return c.session, nil
}

func (c *Client) currentSession() *session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Close shuts the client down for good. Outstanding requests fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	s := c.session
	c.session = nil
	c.transition(StateDisconnected)
	c.mu.Unlock()

	c.pending.failAll(ErrClosed)
	c.cfg.metrics.setPending(0)
	c.cancel()

	if s == nil {
		return nil
	}
	s.finish(ErrClosed)
	return s.transport.Close()
}

// transition moves the state machine to. The caller must hold c.mu.
func (c *Client) transition(to ConnectionState) {
	from := c.state
	if from == to {
		return
	}
	if !canTransition(from, to) {
		c.log(slog.LevelDebug, "ignored invalid transition",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		return
	}
	c.state = to
	c.cfg.metrics.transition(to)

	change := StateChange{From: from, To: to}
	if c.session != nil {
		change.SessionID = c.session.id
		change.Endpoint = c.session.endpoint
	}
	c.log(slog.LevelInfo, "state changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.String("session_id", change.SessionID),
	)
	if c.cfg.onStateChange != nil {
		c.cfg.onStateChange(change)
	}
}

func (c *Client) log(level slog.Level, msg string, attrs ...slog.Attr) {
	if c.cfg.logger == nil {
		return
	}
	c.cfg.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
