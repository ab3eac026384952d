//go:build linux

package raspberry

import (
	"time"

	"github.com/warthog618/gpio"
)

// maxBCM is the count of BCM gpio pins.
const maxBCM = 54

// MemGPIO is the memory mapped gpio of a raspberry pi.
type MemGPIO struct{}

// MemPin is a pin of the memory mapped gpio.
// Edges are timestamped when the watch handler runs.
type MemPin struct {
	gpioPin *gpio.Pin
}

// openMem opens GPIO memory range from /dev/gpiomem.
func openMem() (GPIO, error) {
	if err := gpio.Open(); err != nil {
		return nil, err
	}
	return &MemGPIO{}, nil
}

// NewPin creates a new pin object.
// The pin number provided is the BCM GPIO number.
func (c *MemGPIO) NewPin(p int) (Line, error) {
	if p < 0 || p >= maxBCM {
		return nil, ErrInvalidParam
	}
	return &MemPin{gpioPin: gpio.NewPin(p)}, nil
}

// Close removes the interrupt handlers and unmaps GPIO memory.
func (c *MemGPIO) Close() error {
	return gpio.Close()
}

// Pin returns the pin number that this Pin represents.
func (p *MemPin) Pin() int {
	return p.gpioPin.Pin()
}

// Input sets pin as Input.
func (p *MemPin) Input() {
	p.gpioPin.Input()
}

// PullUp sets the pull state of the pin to PullUp.
func (p *MemPin) PullUp() {
	p.gpioPin.PullUp()
}

// Read pin state (high/low).
func (p *MemPin) Read() bool {
	return bool(p.gpioPin.Read())
}

// Ticks returns the process time in ns, truncated to 32 bits.
func (p *MemPin) Ticks() uint32 {
	return uint32(time.Since(epoch))
}

// Frequency returns the tick frequency.
func (p *MemPin) Frequency() uint32 {
	return NanoSecond
}

// Watch the pin for changes to level on both edges.
// There can only be one watcher on the pin at a time.
func (p *MemPin) Watch(handler func()) error {
	return p.gpioPin.Watch(gpio.EdgeBoth, func(*gpio.Pin) { handler() })
}

// Unwatch removes any watch from the pin.
func (p *MemPin) Unwatch() {
	p.gpioPin.Unwatch()
}
