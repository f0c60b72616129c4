// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package transport

import (
	"sync"

	"github.com/usvc-dev/dapwire/pkg/wire"
)

// ResponseCallback receives the response correlated to a request sent with
// SendRequest. It is invoked exactly once: either with the response (err nil)
// or, if the connection is torn down first, with a non-nil err and a nil
// response.
type ResponseCallback func(resp *wire.Response, err error)

// pendingRequestMap is a thread-safe map of outstanding request callbacks
// keyed by request sequence number. At most one callback exists per seq;
// Take removes the entry, which is what makes callback invocation one-shot.
type pendingRequestMap struct {
	mu        sync.Mutex
	callbacks map[int]ResponseCallback
}

func newPendingRequestMap() *pendingRequestMap {
	return &pendingRequestMap{
		callbacks: make(map[int]ResponseCallback),
	}
}

// Add registers a callback for the request with the given seq.
func (m *pendingRequestMap) Add(seq int, cb ResponseCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[seq] = cb
}

// Take retrieves and removes the callback registered for seq.
// Returns nil if no callback exists for the given sequence number.
func (m *pendingRequestMap) Take(seq int) ResponseCallback {
	m.mu.Lock()
	defer m.mu.Unlock()

	cb, ok := m.callbacks[seq]
	if !ok {
		return nil
	}

	delete(m.callbacks, seq)
	return cb
}

// Len returns the number of outstanding requests.
func (m *pendingRequestMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callbacks)
}

// DrainWithError removes every entry and invokes each callback once with
// the given error. Used during teardown to fail outstanding requests
// without ever invoking a callback twice.
func (m *pendingRequestMap) DrainWithError(err error) {
	m.mu.Lock()
	drained := m.callbacks
	m.callbacks = make(map[int]ResponseCallback)
	m.mu.Unlock()

	for _, cb := range drained {
		cb(nil, err)
	}
}

// sequenceCounter provides thread-safe sequence number generation.
type sequenceCounter struct {
	mu  sync.Mutex
	seq int
}

// newSequenceCounter creates a new sequence counter; the first Next() returns 1.
func newSequenceCounter() *sequenceCounter {
	return &sequenceCounter{seq: 0}
}

// Next returns the next sequence number.
func (c *sequenceCounter) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *sequenceCounter) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
