package socket

import (
	"sync"
	"sync/atomic"
	"time"
)

// outcome is the single resolution of a pending request.
type outcome struct {
	reply *ReplyPacket
	err   error
}

// pendingRequest waits for the reply to one method packet.
type pendingRequest struct {
	id      uint64
	method  string
	created time.Time
	ch      chan outcome // buffered, receives exactly one outcome
}

// pendingTable maps outstanding request ids to their waiters. An entry is
// removed under the lock before its outcome is delivered, so whichever of
// resolve, cancel or failAll removes it is the only one to resolve it.
type pendingTable struct {
	seq atomic.Uint64

	mu      sync.Mutex
	entries map[uint64]*pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[uint64]*pendingRequest)}
}

// nextID returns a fresh, monotonically increasing id. Ids start at 1.
func (t *pendingTable) nextID() uint64 {
	return t.seq.Add(1)
}

// add registers a waiter for id. It must be called before the packet is written.
func (t *pendingTable) add(id uint64, method string) *pendingRequest {
	pr := &pendingRequest{
		id:      id,
		method:  method,
		created: time.Now(),
		ch:      make(chan outcome, 1),
	}
	t.mu.Lock()
	t.entries[id] = pr
	t.mu.Unlock()
	return pr
}

// resolve delivers a reply. It reports false when no request with that id is
// outstanding, which covers late and duplicate replies.
func (t *pendingTable) resolve(reply *ReplyPacket) (*pendingRequest, bool) {
	t.mu.Lock()
	pr, ok := t.entries[reply.ID]
	if ok {
		delete(t.entries, reply.ID)
	}
	t.mu.Unlock()
	if !ok {
		return nil, false
	}
	pr.ch <- outcome{reply: reply}
	return pr, true
}

// cancel fails the request with err. It reports false when the request was
// already resolved.
func (t *pendingTable) cancel(id uint64, err error) bool {
	t.mu.Lock()
	pr, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	pr.ch <- outcome{err: err}
	return true
}

// failAll fails every outstanding request with err and returns how many there were.
func (t *pendingTable) failAll(err error) int {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint64]*pendingRequest)
	t.mu.Unlock()

	for _, pr := range entries {
		pr.ch <- outcome{err: err}
	}
	return len(entries)
}

// len returns the number of outstanding requests.
func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
