package interactive

import (
	"encoding/json"

	"github.com/KaefGAMES/StreamingClientLibrary/socket"
)

// Server pushes the client subscribes to.
const (
	EventHello             = "hello"
	EventParticipantJoin   = "onParticipantJoin"
	EventParticipantLeave  = "onParticipantLeave"
	EventParticipantUpdate = "onParticipantUpdate"
	EventMemoryWarning     = "issueMemoryWarning"
	EventInput             = "giveInput"
	EventReady             = "onReady"
)

type participantsEvent struct {
	Participants []Participant `json:"participants"`
}

// subscribe decodes every push named name into T before calling fn.
// Pushes that do not decode are dropped.
func subscribe[T any](c *Client, name string, fn func(T)) (unsubscribe func()) {
	return c.sock.Subscribe(name, func(_ string, payload json.RawMessage) {
		v, err := socket.DecodePayload[T](payload)
		if err != nil {
			return
		}
		fn(v)
	})
}

// OnHello calls fn for every server hello, including those of reconnects.
func (c *Client) OnHello(fn func()) (unsubscribe func()) {
	return c.sock.Subscribe(EventHello, func(string, json.RawMessage) { fn() })
}

// OnParticipantJoin calls fn with the participants of every join push.
func (c *Client) OnParticipantJoin(fn func([]Participant)) (unsubscribe func()) {
	return subscribe(c, EventParticipantJoin, func(e participantsEvent) { fn(e.Participants) })
}

// OnParticipantLeave calls fn with the participants of every leave push.
func (c *Client) OnParticipantLeave(fn func([]Participant)) (unsubscribe func()) {
	return subscribe(c, EventParticipantLeave, func(e participantsEvent) { fn(e.Participants) })
}

// OnParticipantUpdate calls fn with the participants of every update push.
func (c *Client) OnParticipantUpdate(fn func([]Participant)) (unsubscribe func()) {
	return subscribe(c, EventParticipantUpdate, func(e participantsEvent) { fn(e.Participants) })
}

// OnMemoryWarning calls fn when the server warns that the session is close
// to its memory limit.
func (c *Client) OnMemoryWarning(fn func(MemoryStats)) (unsubscribe func()) {
	return subscribe(c, EventMemoryWarning, fn)
}

// OnInput calls fn for every participant input.
func (c *Client) OnInput(fn func(Input)) (unsubscribe func()) {
	return subscribe(c, EventInput, fn)
}
