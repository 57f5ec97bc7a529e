package socket

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrClosed           = errors.New("socket: client closed")
	ErrDisconnected     = errors.New("socket: disconnected")
	ErrNotConnected     = errors.New("socket: not connected")
	ErrRequestTimeout   = errors.New("socket: request timed out")
	ErrHandshakeTimeout = errors.New("socket: handshake timed out")
	ErrReadyTimeout     = errors.New("socket: ready timed out")
	ErrMalformedPacket  = errors.New("socket: malformed packet")
	ErrNoEndpoints      = errors.New("socket: no endpoints")
)

// ConnectionError represents a transport-level error.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("socket: %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("socket: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SendError represents an error while writing a packet.
type SendError struct {
	Method string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("socket: send %s: %v", e.Method, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ConnectError is returned by Connect when the handshake was not observed.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("socket: connect: %v", e.Err)
	}
	return fmt.Sprintf("socket: connect %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ReadyError is returned by Ready when the ready acknowledgement was not observed.
type ReadyError struct {
	Err error
}

func (e *ReadyError) Error() string {
	return fmt.Sprintf("socket: ready: %v", e.Err)
}

func (e *ReadyError) Unwrap() error {
	return e.Err
}

// ProtocolError represents an inbound frame that could not be decoded.
// The read loop logs and drops such frames.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("socket: protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("socket: protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedPacket}
	}
	return []error{ErrMalformedPacket, e.Err}
}

// RequestError is returned by Call when a request did not get a successful reply.
type RequestError struct {
	Method string
	ID     uint64
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("socket: request %s (id %d): %v", e.Method, e.ID, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
