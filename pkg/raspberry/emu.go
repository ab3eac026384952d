package raspberry

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// EmuGPIO emulates a gpio device, e.g. to replay recorded edges or for tests.
type EmuGPIO struct {
	frequency uint32
	rl        sync.Mutex
	pins      map[int]*EmuLine
}

// EmuLine is an emulated line with its own tick counter.
type EmuLine struct {
	gpio      int
	frequency uint32
	pullUp    bool
	level     atomic.Bool
	ticks     atomic.Uint32
	handler   func()
}

// NewEmu creates an emulated gpio device with the given tick frequency.
func NewEmu(frequency uint32) *EmuGPIO {
	return &EmuGPIO{frequency: frequency, pins: map[int]*EmuLine{}}
}

// NewPin creates a new emulated line, its level is low until PullUp is called.
func (c *EmuGPIO) NewPin(p int) (Line, error) {
	return c.NewEmuLine(p)
}

// NewEmuLine is NewPin returning the concrete type.
func (c *EmuGPIO) NewEmuLine(p int) (*EmuLine, error) {
	c.rl.Lock()
	defer c.rl.Unlock()

	if _, ok := c.pins[p]; ok {
		return nil, fmt.Errorf("pin %v already used", p)
	}

	l := NewEmuLine(p, c.frequency)
	c.pins[p] = l
	return l, nil
}

// Line returns the emulated line p, if it has been requested.
func (c *EmuGPIO) Line(p int) (*EmuLine, bool) {
	c.rl.Lock()
	defer c.rl.Unlock()

	l, ok := c.pins[p]
	return l, ok
}

// Close releases the emulated lines.
func (c *EmuGPIO) Close() error {
	c.rl.Lock()
	defer c.rl.Unlock()

	c.pins = map[int]*EmuLine{}
	return nil
}

// NewEmuLine creates a single emulated line.
func NewEmuLine(p int, frequency uint32) *EmuLine {
	return &EmuLine{gpio: p, frequency: frequency}
}

// Pin returns the pin number.
func (l *EmuLine) Pin() int {
	return l.gpio
}

// Input sets the line as input.
func (l *EmuLine) Input() {}

// PullUp lets the unconnected line read high.
func (l *EmuLine) PullUp() {
	l.pullUp = true
	l.level.Store(true)
}

// Read returns the current level.
func (l *EmuLine) Read() bool {
	return l.level.Load()
}

// Ticks returns the emulated counter.
func (l *EmuLine) Ticks() uint32 {
	return l.ticks.Load()
}

// Frequency returns the tick frequency.
func (l *EmuLine) Frequency() uint32 {
	return l.frequency
}

// Watch registers the edge handler.
func (l *EmuLine) Watch(handler func()) error {
	if l.handler != nil {
		return fmt.Errorf("pin %v already watched", l.gpio)
	}
	l.handler = handler
	return nil
}

// Unwatch removes the edge handler.
func (l *EmuLine) Unwatch() {
	l.handler = nil
}

// SetTicks sets the counter without an edge.
func (l *EmuLine) SetTicks(ticks uint32) {
	l.ticks.Store(ticks)
}

// EmuEdge emulates a change of the line to level at ticks.
// The handler is called only if the level changes.
func (l *EmuLine) EmuEdge(level bool, ticks uint32) {
	l.ticks.Store(ticks)
	if l.level.Swap(level) == level {
		return
	}

	if l.handler != nil {
		l.handler()
	}
}
