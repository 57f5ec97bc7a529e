// Package chat is a client for the channel chat service.
//
// The chat service speaks the same duplex protocol as the interactive
// service, but with positional method arguments, "event" pushes and a
// WelcomeEvent greeting. Authentication happens in Ready by calling "auth".
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KaefGAMES/StreamingClientLibrary/socket"
)

// Server pushes the client subscribes to.
const (
	EventWelcome       = "WelcomeEvent"
	EventChatMessage   = "ChatMessage"
	EventUserJoin      = "UserJoin"
	EventUserLeave     = "UserLeave"
	EventDeleteMessage = "DeleteMessage"
	EventClearMessages = "ClearMessages"
)

// ErrNotAuthenticated is returned by Ready when the server rejects the credentials.
var ErrNotAuthenticated = errors.New("chat: not authenticated")

// Credentials identify the chatting user. A nil *Credentials joins the
// channel anonymously and read only.
type Credentials struct {
	UserID  int64
	AuthKey string
}

// AuthResult is the reply to auth.
type AuthResult struct {
	Authenticated bool     `json:"authenticated"`
	Roles         []string `json:"roles"`
}

// Client is a chat client for one channel. It is safe for concurrent use.
type Client struct {
	sock      *socket.Client
	channelID int64
	creds     *Credentials
}

// New creates a chat client for channelID. Options are passed through to the
// underlying socket client.
func New(endpoints []string, channelID int64, creds *Credentials, opts ...socket.Option) (*Client, error) {
	pool, err := socket.NewEndpointPool(endpoints...)
	if err != nil {
		return nil, err
	}

	c := &Client{channelID: channelID, creds: creds}
	base := []socket.Option{
		socket.WithHandshake(isWelcome),
		socket.WithReadyFunc(c.authenticate),
	}
	c.sock = socket.New(pool, append(base, opts...)...)
	return c, nil
}

func isWelcome(p socket.Packet) bool {
	e, ok := p.(*socket.EventPacket)
	return ok && e.Name == EventWelcome
}

// authenticate is the ready step: it joins the channel with the credentials.
func (c *Client) authenticate(ctx context.Context, sock *socket.Client) error {
	args := []any{c.channelID}
	if c.creds != nil {
		args = append(args, c.creds.UserID, c.creds.AuthKey)
	}

	result, err := sock.CallArgs(ctx, "auth", args...)
	if err != nil {
		return err
	}
	auth, err := socket.DecodePayload[AuthResult](result)
	if err != nil {
		return err
	}
	if c.creds != nil && !auth.Authenticated {
		return ErrNotAuthenticated
	}
	return nil
}

// Connect opens the connection and waits for the WelcomeEvent.
func (c *Client) Connect(ctx context.Context) error {
	return c.sock.Connect(ctx)
}

// Ready authenticates to the channel.
func (c *Client) Ready(ctx context.Context) error {
	return c.sock.Ready(ctx)
}

// Close closes the client for good.
func (c *Client) Close() error {
	return c.sock.Close()
}

// State returns the connection state.
func (c *Client) State() socket.ConnectionState {
	return c.sock.State()
}

// ChannelID returns the channel the client chats in.
func (c *Client) ChannelID() int64 {
	return c.channelID
}

func (c *Client) call(ctx context.Context, method string, out any, args ...any) error {
	result, err := c.sock.CallArgs(ctx, method, args...)
	if err != nil {
		return err
	}
	if out == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("chat: decode %s reply: %w", method, err)
	}
	return nil
}

// SendMessage posts text to the channel and returns the message as stored.
func (c *Client) SendMessage(ctx context.Context, text string) (*Message, error) {
	var msg Message
	if err := c.call(ctx, "msg", &msg, text); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Whisper sends text privately to username.
func (c *Client) Whisper(ctx context.Context, username, text string) (*Message, error) {
	var msg Message
	if err := c.call(ctx, "whisper", &msg, username, text); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage removes one message by id.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.call(ctx, "deleteMessage", nil, id)
}

// ClearMessages removes every message in the channel.
func (c *Client) ClearMessages(ctx context.Context) error {
	return c.call(ctx, "clearMessages", nil)
}

// Timeout stops username from chatting for duration, given in the
// service's format such as "30s" or "5m".
func (c *Client) Timeout(ctx context.Context, username, duration string) error {
	return c.call(ctx, "timeout", nil, username, duration)
}

// History returns up to count recent messages, oldest first.
func (c *Client) History(ctx context.Context, count int) ([]Message, error) {
	var msgs []Message
	if err := c.call(ctx, "history", &msgs, count); err != nil {
		return nil, err
	}
	return msgs, nil
}

func subscribe[T any](c *Client, name string, fn func(T)) (unsubscribe func()) {
	return c.sock.Subscribe(name, func(_ string, payload json.RawMessage) {
		v, err := socket.DecodePayload[T](payload)
		if err != nil {
			return
		}
		fn(v)
	})
}

// OnMessage calls fn for every chat message, including the client's own.
func (c *Client) OnMessage(fn func(Message)) (unsubscribe func()) {
	return subscribe(c, EventChatMessage, fn)
}

// OnUserJoin calls fn when a user joins the channel.
func (c *Client) OnUserJoin(fn func(User)) (unsubscribe func()) {
	return subscribe(c, EventUserJoin, fn)
}

// OnUserLeave calls fn when a user leaves the channel.
func (c *Client) OnUserLeave(fn func(User)) (unsubscribe func()) {
	return subscribe(c, EventUserLeave, fn)
}

// OnDeleteMessage calls fn with the id of every deleted message.
func (c *Client) OnDeleteMessage(fn func(id string)) (unsubscribe func()) {
	return subscribe(c, EventDeleteMessage, func(e struct {
		ID string `json:"id"`
	}) {
		fn(e.ID)
	})
}

// OnClearMessages calls fn when the channel is cleared.
func (c *Client) OnClearMessages(fn func()) (unsubscribe func()) {
	return c.sock.Subscribe(EventClearMessages, func(string, json.RawMessage) { fn() })
}
