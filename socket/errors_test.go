package socket

import (
	"errors"
	"testing"
)

func TestConnectionError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := &ConnectionError{Op: "dial", URL: "wss://example.com", Err: underlying}

	expected := "socket: dial wss://example.com: connection refused"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should return true for underlying error")
	}

	noURL := &ConnectionError{Op: "read", Err: underlying}
	if noURL.Error() != "socket: read: connection refused" {
		t.Errorf("Error() = %s", noURL.Error())
	}
}

func TestSendError(t *testing.T) {
	err := &SendError{Method: "giveInput", Err: ErrClosed}

	expected := "socket: send giveInput: socket: client closed"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
	if !errors.Is(err, ErrClosed) {
		t.Error("errors.Is should return true for ErrClosed")
	}
}

func TestConnectError(t *testing.T) {
	err := &ConnectError{URL: "wss://example.com", Err: ErrHandshakeTimeout}

	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Error("errors.Is should return true for ErrHandshakeTimeout")
	}
	expected := "socket: connect wss://example.com: socket: handshake timed out"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
}

func TestReadyError(t *testing.T) {
	err := &ReadyError{Err: ErrReadyTimeout}
	if !errors.Is(err, ErrReadyTimeout) {
		t.Error("errors.Is should return true for ErrReadyTimeout")
	}
}

func TestProtocolError(t *testing.T) {
	inner := errors.New("unexpected end of JSON input")
	err := &ProtocolError{Reason: "invalid json", Err: inner}

	expected := "socket: protocol error: invalid json: unexpected end of JSON input"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
	if !errors.Is(err, ErrMalformedPacket) {
		t.Error("errors.Is should return true for ErrMalformedPacket")
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is should return true for the inner error")
	}

	bare := &ProtocolError{Reason: "missing type"}
	if bare.Error() != "socket: protocol error: missing type" {
		t.Errorf("Error() = %s", bare.Error())
	}
	if !errors.Is(bare, ErrMalformedPacket) {
		t.Error("errors.Is should return true for ErrMalformedPacket")
	}
}

func TestRequestError(t *testing.T) {
	replyErr := &ReplyError{Code: 4006, Message: "unknown control"}
	err := &RequestError{Method: "updateControls", ID: 12, Err: replyErr}

	expected := "socket: request updateControls (id 12): socket: reply error 4006: unknown control"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}

	var target *ReplyError
	if !errors.As(err, &target) || target.Code != 4006 {
		t.Errorf("errors.As ReplyError = %v", target)
	}
}

func TestReplyError_NoCode(t *testing.T) {
	err := &ReplyError{Message: "Not allowed"}
	if err.Error() != "socket: reply error: Not allowed" {
		t.Errorf("Error() = %s", err.Error())
	}
}
