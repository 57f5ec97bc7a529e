package socket

import (
	"encoding/json"
	"fmt"
	"sync"
)

// AllEvents subscribes a handler to every unsolicited packet.
const AllEvents = "*"

// Handler receives an unsolicited packet's name and payload.
type Handler func(name string, payload json.RawMessage)

type subscription struct {
	fn Handler
}

// Dispatcher routes unsolicited packets to the handlers subscribed to their
// name. Handler lists are copy-on-write: a dispatch iterates the list that
// was current when it started.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]*subscription

	// onPanic is told about handlers that panicked. May be nil.
	onPanic func(name string, recovered any)
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]*subscription)}
}

// Subscribe registers fn for name and returns a function that removes it.
// The returned function may be called any number of times.
func (d *Dispatcher) Subscribe(name string, fn Handler) (unsubscribe func()) {
	sub := &subscription{fn: fn}

	d.mu.Lock()
	current := d.handlers[name]
	next := make([]*subscription, len(current), len(current)+1)
	copy(next, current)
	d.handlers[name] = append(next, sub)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(name, sub) })
	}
}

func (d *Dispatcher) remove(name string, sub *subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := d.handlers[name]
	next := make([]*subscription, 0, len(current))
	for _, s := range current {
		if s != sub {
			next = append(next, s)
		}
	}
	if len(next) == 0 {
		delete(d.handlers, name)
		return
	}
	d.handlers[name] = next
}

// Dispatch runs every handler subscribed to name, then every AllEvents
// handler, and returns how many ran. Having no handler is not an error.
// A push literally named AllEvents runs each AllEvents handler once.
func (d *Dispatcher) Dispatch(name string, payload json.RawMessage) int {
	d.mu.RLock()
	named := d.handlers[name]
	var all []*subscription
	if name != AllEvents {
		all = d.handlers[AllEvents]
	}
	d.mu.RUnlock()

	for _, s := range named {
		d.call(s, name, payload)
	}
	for _, s := range all {
		d.call(s, name, payload)
	}
	return len(named) + len(all)
}

// Handlers returns how many handlers are subscribed to name.
func (d *Dispatcher) Handlers(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[name])
}

func (d *Dispatcher) call(s *subscription, name string, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil && d.onPanic != nil {
			d.onPanic(name, r)
		}
	}()
	s.fn(name, payload)
}

// await returns a channel that is closed the first time a packet named name
// satisfies match. The returned cancel func releases the subscription.
func (d *Dispatcher) await(name string, match func(json.RawMessage) bool) (<-chan struct{}, func()) {
	done := make(chan struct{})
	var once sync.Once
	unsubscribe := d.Subscribe(name, func(_ string, payload json.RawMessage) {
		if match == nil || match(payload) {
			once.Do(func() { close(done) })
		}
	})
	return done, unsubscribe
}

// DecodePayload unmarshals a handler or reply payload into T. An empty or
// null payload yields the zero value.
func DecodePayload[T any](payload json.RawMessage) (T, error) {
	var v T
	if isEmpty(payload) {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("socket: decode %T: %w", v, err)
	}
	return v, nil
}
