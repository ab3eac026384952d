//go:build linux

package raspberry

import (
	"sync/atomic"
	"time"

	"github.com/warthog618/gpiod"
)

// epoch is the reference of the handler timestamps taken in this process.
var epoch = time.Now()

// Chip represents a single GPIO chip that controls a set of lines.
type Chip struct {
	gpiodChip *gpiod.Chip
}

// ChipLine represents a single line of a chip.
//   The line is requested when it is watched. The edge handler receives level and
//   kernel timestamp (ns) of the event via Read and Ticks.
type ChipLine struct {
	chip      *gpiod.Chip
	offset    int
	pullUp    bool
	gpiodLine *gpiod.Line

	level atomic.Bool
	// stamp is the kernel timestamp of the last event in ns, truncated to 32 bits
	stamp atomic.Uint32
	// seen is the process time of the last event, to extrapolate stamp
	seen        atomic.Int64
	dispatching atomic.Bool
}

// openChip opens a GPIO character device.
func openChip(name string) (GPIO, error) {
	if name == "" {
		name = "gpiochip0"
	}

	c, err := gpiod.NewChip(name, gpiod.WithConsumer("softrx"))
	if err != nil {
		return nil, err
	}
	return &Chip{gpiodChip: c}, nil
}

// NewPin returns the line with the given offset. Control is requested by Watch.
func (c *Chip) NewPin(gpio int) (Line, error) {
	if gpio < 0 {
		return nil, ErrInvalidParam
	}

	l := &ChipLine{chip: c.gpiodChip, offset: gpio}
	// an idle serial line is high
	l.level.Store(true)
	return l, nil
}

// Close releases the Chip.
//
// It does not release any lines which may be requested - they must be unwatched
// independently.
func (c *Chip) Close() error {
	return c.gpiodChip.Close()
}

// Pin returns the line offset.
func (l *ChipLine) Pin() int {
	return l.offset
}

// Input is implied by Watch, the line is requested as input.
func (l *ChipLine) Input() {}

// PullUp requests the line with pull-up bias.
func (l *ChipLine) PullUp() {
	l.pullUp = true
}

// Read returns the level of the event being handled, or the level after the last event.
func (l *ChipLine) Read() bool {
	return l.level.Load()
}

// Ticks returns the timestamp of the event being handled.
// Outside the handler the timestamp of the last event is extrapolated to now.
func (l *ChipLine) Ticks() uint32 {
	if l.dispatching.Load() {
		return l.stamp.Load()
	}
	return l.stamp.Load() + uint32(int64(time.Since(epoch))-l.seen.Load())
}

// Frequency returns the tick frequency, timestamps are in ns.
func (l *ChipLine) Frequency() uint32 {
	return NanoSecond
}

// Watch requests the line as input and calls handler on both edges.
func (l *ChipLine) Watch(handler func()) error {
	var err error

	eh := func(evt gpiod.LineEvent) {
		l.dispatching.Store(true)
		l.level.Store(evt.Type == gpiod.LineEventRisingEdge)
		l.stamp.Store(uint32(evt.Timestamp))
		l.seen.Store(int64(time.Since(epoch)))
		handler()
		l.dispatching.Store(false)
	}

	if l.pullUp {
		l.gpiodLine, err = l.chip.RequestLine(l.offset, gpiod.WithEventHandler(eh),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullUp)
	} else {
		l.gpiodLine, err = l.chip.RequestLine(l.offset, gpiod.WithEventHandler(eh),
			gpiod.WithBothEdges, gpiod.AsInput)
	}
	if err != nil {
		return err
	}

	if v, e := l.gpiodLine.Value(); e == nil {
		l.level.Store(v == 1)
	}
	return nil
}

// Unwatch releases the line.
//
// Note that this includes waiting for any running event handler to return.
// As a consequence Unwatch must not be called from the context of the event handler.
func (l *ChipLine) Unwatch() {
	if l.gpiodLine == nil {
		return
	}
	_ = l.gpiodLine.Close()
	l.gpiodLine = nil
}
