// Package softrx is a software receiver for asynchronous serial data (8-N-1, LSB first, idle high).
//
// The receiver has no UART behind it. It is driven by the edge interrupt of a single
// input line and a free-running tick counter:
//  * OnEdge converts the time since the previous edge into a number of bit periods and
//    shifts that many bits of the level that just ended into the frame register
//  * once start bit, eight data bits and stop bit are in, the frame is checked and the
//    data byte is queued, or the framing error state is set
//  * Service, called periodically from the foreground, completes a frame that stalled
//    because the line went idle (high) and no further edge arrived
//
// Errors are sticky states, not Go errors. A falling edge after a long idle period
// clears them.
package softrx

import (
	"errors"
	"runtime"
	"sync/atomic"

	"softrx/pkg/port"
	"softrx/pkg/ringbuffer"
)

const (
	// frameBits is the count of bits in a frame: start bit, 8 data bits and stop bit.
	frameBits = 10
	// maxRun is the longest possible run of equal bits within a frame.
	maxRun = 9
	// longTime is the saturated bit count, it means "more than we track".
	longTime = 0x7f
	// longTimeShift scales the half bit period to the long time threshold (32 half bits = 16 bits).
	longTimeShift = 5
	// tickMask limits tick differences to 31 bits, so the difference survives wrapping.
	tickMask = 0x7fffffff

	// stopBit is the register position of the newest bit, the stop bit once the frame is complete.
	stopBit = 0x200
	// controlMask selects the start bit (bit 0) and everything from the stop bit upwards.
	controlMask = 0xfe01

	// DefaultQueueSize is the default capacity of the receive queue.
	DefaultQueueSize = 64
)

// guard states
const (
	idle int32 = iota
	inEdge
	inService
)

var (
	// ErrNoData is returned by ReadByte if no byte has been received.
	ErrNoData = errors.New("no data received")
	// ErrInvalidBaud is returned if the baud rate can't be timed with the clock.
	ErrInvalidBaud = errors.New("invalid baud rate")
)

// ErrorState is the sticky error state of a receiver.
type ErrorState uint32

const (
	// NoError is the normal receiving state.
	NoError ErrorState = iota
	// StopBitError indicates a frame without a valid start and stop bit.
	StopBitError
	// LongLowError indicates the line was low for longer than any frame allows.
	LongLowError
)

func (s ErrorState) String() string {
	switch s {
	case NoError:
		return "ok"
	case StopBitError:
		return "stop bit error"
	case LongLowError:
		return "line held low"
	default:
		return "unknown"
	}
}

// Registrar binds the edge handler of a receiver to its line.
type Registrar interface {
	Register(h EdgeHandler, pin port.Pin) (int, error)
}

// EdgeHandler is called by the platform on every transition of a registered line.
type EdgeHandler interface {
	OnEdge()
}

// Option modifies the receiver configuration.
type Option func(*options)

type options struct {
	queueSize int
	policy    ringbuffer.Policy
}

// WithQueue sets the capacity (power of two) and overflow policy of the receive queue.
func WithQueue(size int, policy ringbuffer.Policy) Option {
	return func(o *options) {
		o.queueSize = size
		o.policy = policy
	}
}

// Receiver decodes the serial data of one input line.
type Receiver struct {
	pin   port.Pin
	clock port.Clock
	baud  uint32

	// halfBit is half a bit period in ticks, it never changes after Configure.
	halfBit uint32

	// lastChange is the tick of the last edge, 0 means "a long time ago".
	lastChange uint32
	// bitBuffer is the frame register, new bits enter at stopBit and move towards bit 0.
	bitBuffer uint16
	// bitCounter is 0 while waiting for a start bit, 1 after the start edge and
	// frameBits+1 once the frame is complete.
	bitCounter uint8

	state atomic.Uint32
	guard atomic.Int32

	queue *ringbuffer.Buffer
	stats counters
}

// Configure sets up a receiver for baud on pin and registers its edge handler.
// The pin is set to input with pull-up, so an unconnected line reads idle.
func Configure(reg Registrar, pin port.Pin, clock port.Clock, baud uint32, opts ...Option) (*Receiver, error) {
	o := options{queueSize: DefaultQueueSize, policy: ringbuffer.Drop}
	for _, opt := range opts {
		opt(&o)
	}

	halfBit, err := halfBitPeriod(clock.Frequency(), baud)
	if err != nil {
		return nil, err
	}

	q, err := ringbuffer.New(o.queueSize, o.policy)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		pin:     pin,
		clock:   clock,
		baud:    baud,
		halfBit: halfBit,
		queue:   q,
	}

	pin.Input()
	pin.PullUp()

	if _, err = reg.Register(r, pin); err != nil {
		return nil, err
	}
	return r, nil
}

// halfBitPeriod returns half a bit period in ticks.
// The long time threshold (32 half bits) must still fit into 31 bits.
func halfBitPeriod(frequency, baud uint32) (uint32, error) {
	if baud == 0 {
		return 0, ErrInvalidBaud
	}

	halfBit := (frequency / 2) / baud
	if halfBit == 0 || halfBit > tickMask>>longTimeShift {
		return 0, ErrInvalidBaud
	}
	return halfBit, nil
}

// Pin returns the line number the receiver listens on.
func (r *Receiver) Pin() int {
	return r.pin.Pin()
}

// Baud returns the configured baud rate.
func (r *Receiver) Baud() uint32 {
	return r.baud
}

// IdleTicks returns the time (16 bit periods) after which the line counts as idle.
func (r *Receiver) IdleTicks() uint32 {
	return r.halfBit << longTimeShift
}

// OnEdge is the edge handler, the platform calls it on every transition of the line.
// A nested call while an edge is processed is ignored.
func (r *Receiver) OnEdge() {
	level := r.pin.Read()
	ticks := r.clock.Ticks()

	if !r.guard.CompareAndSwap(idle, inEdge) {
		if r.guard.Load() == inEdge {
			return
		}
		// a sweep is running, it finishes in bounded time
		for !r.guard.CompareAndSwap(idle, inEdge) {
			runtime.Gosched()
		}
	}

	r.edge(level, ticks)
	r.guard.Store(idle)
}

// edge processes a transition to level at ticks.
func (r *Receiver) edge(level bool, ticks uint32) {
	prev := r.State()
	numBits := r.bitsSince(ticks)

	// the bits carry the level that has just ended
	r.addBits(numBits, !level)

	if numBits > maxRun {
		if !level {
			// a falling edge after a long time: the line was idle, this is a start bit
			r.state.Store(uint32(NoError))
			r.bitCounter = 0
		} else {
			r.state.Store(uint32(LongLowError))
		}
	}

	if r.bitCounter == 0 && !level {
		r.bitCounter = 1
		r.bitBuffer = 0
	}

	// 0 is reserved for "a long time ago"
	r.lastChange = ticks
	if r.lastChange == 0 {
		r.lastChange = 1
	}

	r.stats.commit(prev, r.State())
}

// bitsSince returns the number of bit periods from the last edge to ticks,
// rounded to the nearest bit and saturated to longTime.
func (r *Receiver) bitsSince(ticks uint32) uint8 {
	delta := uint32(0xffffffff)
	if r.lastChange != 0 {
		delta = (ticks - r.lastChange) & tickMask
	}

	if delta < r.halfBit<<longTimeShift {
		return uint8((delta/r.halfBit + 1) >> 1)
	}
	return longTime
}

// Service completes a frame that stalled because the line went idle.
// It must be called at least once per byte time. It does nothing while an edge is processed.
func (r *Receiver) Service() {
	is := disableInterrupts()
	defer restoreInterrupts(is)

	if !r.guard.CompareAndSwap(idle, inService) {
		return
	}
	defer r.guard.Store(idle)

	if r.lastChange == 0 {
		return
	}

	delta := (r.clock.Ticks() - r.lastChange) & tickMask
	if delta <= r.halfBit<<longTimeShift {
		return
	}

	prev := r.State()
	if r.bitCounter != 0 && r.bitCounter <= frameBits {
		// an idle line is high, fill the frame with ones
		r.addBits(frameBits+1-r.bitCounter, true)
		r.stats.stale.Add(1)
	}

	r.lastChange = 0
	r.stats.commit(prev, r.State())
}

// Read returns the next received byte, ok is false if there is none.
func (r *Receiver) Read() (b byte, ok bool) {
	return r.queue.Get()
}

// ReadByte returns the next received byte or ErrNoData.
func (r *Receiver) ReadByte() (byte, error) {
	b, ok := r.queue.Get()
	if !ok {
		return 0, ErrNoData
	}
	return b, nil
}

// Buffered returns the number of received bytes waiting to be read.
func (r *Receiver) Buffered() int {
	return r.queue.Used()
}

// State returns the current error state.
func (r *Receiver) State() ErrorState {
	return ErrorState(r.state.Load())
}
