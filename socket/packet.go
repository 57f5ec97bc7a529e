package socket

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PacketType is the wire discriminator of a packet.
type PacketType string

const (
	TypeMethod PacketType = "method"
	TypeReply  PacketType = "reply"
	TypeEvent  PacketType = "event"
)

// Packet is one decoded frame: a *MethodPacket, *ReplyPacket or *EventPacket.
type Packet interface {
	Type() PacketType
}

// MethodPacket is an outbound request or an inbound unsolicited push.
type MethodPacket struct {
	ID     uint64
	Method string
	// Params is the named-parameter payload used by the interactive service.
	Params json.RawMessage
	// Arguments is the positional payload used by the chat service.
	// When set, Params is not written.
	Arguments []any
	// Discard asks the server not to reply. Discarded packets carry no id.
	Discard bool
}

// Type returns TypeMethod.
func (p *MethodPacket) Type() PacketType { return TypeMethod }

// ReplyPacket answers the MethodPacket with the same id.
type ReplyPacket struct {
	ID     uint64
	Result json.RawMessage
	// Data carries the result for services that name it "data".
	Data  json.RawMessage
	Error *ReplyError
}

// Type returns TypeReply.
func (p *ReplyPacket) Type() PacketType { return TypeReply }

// Payload returns the reply result, whichever field the server used.
func (p *ReplyPacket) Payload() json.RawMessage {
	if !isEmpty(p.Result) {
		return p.Result
	}
	if !isEmpty(p.Data) {
		return p.Data
	}
	return nil
}

// EventPacket is an inbound unsolicited push in event form.
type EventPacket struct {
	Name string
	Data json.RawMessage
}

// Type returns TypeEvent.
func (p *EventPacket) Type() PacketType { return TypeEvent }

// ReplyError is the error member of a reply.
type ReplyError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

func (e *ReplyError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("socket: reply error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("socket: reply error: %s", e.Message)
}

// UnmarshalJSON accepts both the object form and a bare string message.
func (e *ReplyError) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &e.Message)
	}
	type plain ReplyError
	return json.Unmarshal(data, (*plain)(e))
}

// wirePacket is the union of every field any packet shape puts on the wire.
type wirePacket struct {
	Type      PacketType      `json:"type"`
	ID        uint64          `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Arguments []any           `json:"arguments,omitempty"`
	Discard   bool            `json:"discard,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ReplyError     `json:"error,omitempty"`
	Event     string          `json:"event,omitempty"`
}

var emptyParams = json.RawMessage(`{}`)

// NewMethod builds a MethodPacket with params marshaled to JSON.
// A nil params value produces an empty object.
func NewMethod(method string, params any) (*MethodPacket, error) {
	p := &MethodPacket{Method: method}
	if params == nil {
		return p, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		p.Params = raw
		return p, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("socket: marshal %s params: %w", method, err)
	}
	p.Params = raw
	return p, nil
}

// Encode serializes a method packet. The id is omitted for discarded packets
// and params default to an empty object.
func Encode(p *MethodPacket) ([]byte, error) {
	if p.Method == "" {
		return nil, fmt.Errorf("socket: encode: empty method")
	}
	w := wirePacket{
		Type:      TypeMethod,
		Method:    p.Method,
		Params:    p.Params,
		Arguments: p.Arguments,
		Discard:   p.Discard,
	}
	if !p.Discard {
		w.ID = p.ID
	}
	if w.Arguments == nil && isEmpty(w.Params) {
		w.Params = emptyParams
	}
	return json.Marshal(w)
}

// Decode parses one inbound frame. Packets of an unknown type decode to
// (nil, nil) so that newer servers can add shapes.
func Decode(data []byte) (Packet, error) {
	var w wirePacket
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &ProtocolError{Reason: "invalid json", Err: err}
	}

	switch w.Type {
	case TypeMethod:
		if w.Method == "" {
			return nil, &ProtocolError{Reason: "method packet without method"}
		}
		return &MethodPacket{
			ID:        w.ID,
			Method:    w.Method,
			Params:    w.Params,
			Arguments: w.Arguments,
			Discard:   w.Discard,
		}, nil
	case TypeReply:
		return &ReplyPacket{
			ID:     w.ID,
			Result: w.Result,
			Data:   w.Data,
			Error:  w.Error,
		}, nil
	case TypeEvent:
		if w.Event == "" {
			return nil, &ProtocolError{Reason: "event packet without name"}
		}
		return &EventPacket{Name: w.Event, Data: w.Data}, nil
	case "":
		return nil, &ProtocolError{Reason: "missing type"}
	default:
		return nil, nil
	}
}

// unsolicited returns the dispatch name and payload of a server push.
func unsolicited(p Packet) (string, json.RawMessage, bool) {
	switch p := p.(type) {
	case *MethodPacket:
		return p.Method, p.Params, true
	case *EventPacket:
		return p.Name, p.Data, true
	}
	return "", nil, false
}

func isEmpty(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
