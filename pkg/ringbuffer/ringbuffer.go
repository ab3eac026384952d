// Package ringbuffer is a bounded byte queue between an edge handler (single producer)
// and the foreground reader (single consumer).
//
// Neither side ever blocks. What happens to a byte that arrives while the queue is
// full is selected by the Policy.
package ringbuffer

import (
	"errors"
	"sync/atomic"
)

// Policy defines what Put does if the buffer is full.
type Policy int

const (
	// Drop discards the new byte.
	Drop Policy = iota
	// Overwrite discards the oldest byte to make room for the new one.
	Overwrite
)

// ErrInvalidSize is returned if the capacity is not a power of two.
var ErrInvalidSize = errors.New("ring buffer size must be a power of two")

// Buffer is a lock-free single producer / single consumer byte queue.
type Buffer struct {
	// slots holds one byte per entry; atomic access keeps Overwrite safe
	// against a consumer that is reading the same slot.
	slots []uint32
	mask  uint32
	// head is the free-running write counter, only the producer stores it.
	head atomic.Uint32
	// tail is the free-running read counter, moved by the consumer and,
	// with Overwrite, by the producer.
	tail   atomic.Uint32
	policy Policy
	drops  atomic.Uint32
}

// New creates a buffer holding up to size bytes.
func New(size int, policy Policy) (*Buffer, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, ErrInvalidSize
	}

	return &Buffer{
		slots:  make([]uint32, size),
		mask:   uint32(size - 1),
		policy: policy,
	}, nil
}

// Put appends b. It returns false if a byte was lost, either b itself (Drop)
// or the oldest byte (Overwrite).
func (r *Buffer) Put(b byte) bool {
	head := r.head.Load()
	lost := false

	for {
		tail := r.tail.Load()
		if head-tail <= r.mask {
			break
		}

		if r.policy == Drop {
			r.drops.Add(1)
			return false
		}

		// advance tail past the oldest byte, unless the consumer just did it
		if r.tail.CompareAndSwap(tail, tail+1) {
			r.drops.Add(1)
			lost = true
			break
		}
	}

	atomic.StoreUint32(&r.slots[head&r.mask], uint32(b))
	r.head.Store(head + 1)
	return !lost
}

// Get removes and returns the oldest byte, ok is false if the buffer is empty.
func (r *Buffer) Get() (b byte, ok bool) {
	for {
		tail := r.tail.Load()
		if tail == r.head.Load() {
			return 0, false
		}

		v := atomic.LoadUint32(&r.slots[tail&r.mask])
		// the slot was valid only if the producer did not move tail meanwhile
		if r.tail.CompareAndSwap(tail, tail+1) {
			return byte(v), true
		}
	}
}

// Used returns the number of bytes in the buffer.
func (r *Buffer) Used() int {
	tail := r.tail.Load()
	return int(r.head.Load() - tail)
}

// Cap returns the capacity of the buffer.
func (r *Buffer) Cap() int {
	return len(r.slots)
}

// Drops returns the number of bytes lost because the buffer was full.
func (r *Buffer) Drops() uint32 {
	return r.drops.Load()
}

// ParsePolicy converts the configuration keywords "drop" and "overwrite" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "drop", "":
		return Drop, nil
	case "overwrite":
		return Overwrite, nil
	default:
		return Drop, errors.New("invalid overflow policy " + s)
	}
}
