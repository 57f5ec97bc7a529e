// Package interactive is a client for the interactive 2.0 game client protocol.
//
// A [Client] wraps a [socket.Client] with the protocol headers, typed method
// calls and typed event subscriptions:
//
//	client, err := interactive.New(endpoints, token, versionID,
//	    socket.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	client.OnInput(func(in interactive.Input) {
//	    log.Printf("%s pressed %s", in.ParticipantID, in.Input.ControlID)
//	})
//	if err := client.Ready(ctx); err != nil {
//	    return err
//	}
package interactive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KaefGAMES/StreamingClientLibrary/socket"
)

// ProtocolVersion is sent in the X-Protocol-Version handshake header.
const ProtocolVersion = "2.0"

// Client is an interactive game client. It is safe for concurrent use.
type Client struct {
	sock *socket.Client
}

// New creates a client for the given endpoints. versionID selects the
// interactive project version and is sent as X-Interactive-Version.
// Options are passed through to the underlying socket client.
func New(endpoints []string, authToken, versionID string, opts ...socket.Option) (*Client, error) {
	pool, err := socket.NewEndpointPool(endpoints...)
	if err != nil {
		return nil, err
	}

	base := []socket.Option{
		socket.WithAuthToken(authToken),
		socket.WithHeader("X-Protocol-Version", ProtocolVersion),
	}
	if versionID != "" {
		base = append(base, socket.WithHeader("X-Interactive-Version", versionID))
	}
	return &Client{sock: socket.New(pool, append(base, opts...)...)}, nil
}

// Connect opens the connection and waits for the server hello.
func (c *Client) Connect(ctx context.Context) error {
	return c.sock.Connect(ctx)
}

// Ready tells the server the game client is ready and waits for it to
// confirm. Participants start receiving controls after Ready returns.
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

// Socket returns the underlying socket client.
func (c *Client) Socket() *socket.Client {
	return c.sock
}

// call sends method and decodes the reply payload into out, which may be nil.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	result, err := c.sock.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("interactive: decode %s reply: %w", method, err)
	}
	return nil
}
