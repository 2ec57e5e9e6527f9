// Package membership tracks which waiting queue holds each competitor.
package membership

import (
	"sync"
	"sync/atomic"
)

// Slot identifies a queue: a partition key, or General for the unpartitioned queue.
type Slot int

// General is the slot of the unpartitioned queue.
const General Slot = -1

// Index records waiting competitors by identity.
type Index interface {
	// Claim atomically records id as waiting in slot.
	// Returns false if id is already waiting in any slot.
	Claim(id int, slot Slot) bool

	// Release removes id and returns the slot it was waiting in.
	Release(id int) (Slot, bool)

	// Slot returns where id is waiting.
	Slot(id int) (Slot, bool)

	// Reset forgets every entry.
	Reset()

	Size() int64
}

// inMemoryIndex implements Index with a map guarded by a mutex so a
// coordinator can probe buckets owned by other workers.
type inMemoryIndex struct {
	mu    sync.RWMutex
	slots map[int]Slot
	size  atomic.Int64
}

// NewIndex creates an index sized for the expected number of waiting competitors.
func NewIndex(opts ...Option) Index {
	x := &inMemoryIndex{}

	cfg := options{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	x.slots = make(map[int]Slot, cfg.capacity)
	return x
}

func (x *inMemoryIndex) Claim(id int, slot Slot) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.slots[id]; exists {
		return false
	}
	x.slots[id] = slot
	x.size.Add(1)
	return true
}

func (x *inMemoryIndex) Release(id int) (Slot, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	slot, exists := x.slots[id]
	if !exists {
		return 0, false
	}
	delete(x.slots, id)
	x.size.Add(-1)
	return slot, true
}

func (x *inMemoryIndex) Slot(id int) (Slot, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	slot, ok := x.slots[id]
	return slot, ok
}

func (x *inMemoryIndex) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	clear(x.slots)
	x.size.Store(0)
}

// Size returns the number of waiting competitors.
func (x *inMemoryIndex) Size() int64 {
	return x.size.Load()
}
