// Package dispatch binds receivers to the edge interrupts of their lines.
//
// A platform interrupt can't call a method of a receiver directly, so each
// registered receiver gets a slot and the watch handler of its line is a closure
// that forwards to the receiver of that slot. There is a fixed number of slots and
// registered receivers are never removed.
package dispatch

import (
	"errors"
	"sync"

	"softrx/pkg/port"
	"softrx/pkg/softrx"
)

// MaxInstances is the number of receivers a registry can hold.
const MaxInstances = 4

// ErrRegistryFull is returned if all slots are in use.
var ErrRegistryFull = errors.New("all receiver slots in use")

// Registry holds the receivers and the lines they are bound to.
type Registry struct {
	rl       sync.Mutex
	handlers [MaxInstances]softrx.EdgeHandler
	pins     [MaxInstances]port.Pin
	n        int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Register puts h into the next free slot and watches pin for edges on its behalf.
func (r *Registry) Register(h softrx.EdgeHandler, pin port.Pin) (int, error) {
	r.rl.Lock()
	defer r.rl.Unlock()

	if r.n >= MaxInstances {
		return -1, ErrRegistryFull
	}

	slot := r.n
	r.handlers[slot] = h
	r.pins[slot] = pin

	if err := pin.Watch(func() { r.handlers[slot].OnEdge() }); err != nil {
		r.handlers[slot] = nil
		r.pins[slot] = nil
		return -1, err
	}

	r.n++
	return slot, nil
}

// Len returns the number of used slots.
func (r *Registry) Len() int {
	r.rl.Lock()
	defer r.rl.Unlock()
	return r.n
}

// Handler returns the handler of slot, or nil if the slot is unused.
func (r *Registry) Handler(slot int) softrx.EdgeHandler {
	r.rl.Lock()
	defer r.rl.Unlock()

	if slot < 0 || slot >= r.n {
		return nil
	}
	return r.handlers[slot]
}

// Close removes the watches of all registered lines.
func (r *Registry) Close() error {
	r.rl.Lock()
	defer r.rl.Unlock()

	for i := 0; i < r.n; i++ {
		r.pins[i].Unwatch()
	}
	return nil
}
