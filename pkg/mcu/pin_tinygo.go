//go:build tinygo

package mcu

import (
	"machine"
	"time"
)

// Pin is a microcontroller input pin with a microsecond tick counter.
type Pin struct {
	pin machine.Pin
}

// NewPin returns the pin with the given number.
func NewPin(p machine.Pin) *Pin {
	return &Pin{pin: p}
}

// Pin returns the pin number.
func (p *Pin) Pin() int {
	return int(p.pin)
}

// Input sets pin as input.
func (p *Pin) Input() {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinInput})
}

// PullUp sets pin as input with pull-up.
func (p *Pin) PullUp() {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
}

// Read returns the pin level.
func (p *Pin) Read() bool {
	return p.pin.Get()
}

// Ticks returns the system time in µs, truncated to 32 bits.
func (p *Pin) Ticks() uint32 {
	return uint32(time.Now().UnixNano() / 1000)
}

// Frequency returns the tick frequency.
func (p *Pin) Frequency() uint32 {
	return 1_000_000
}

// Watch calls handler from the pin change interrupt on both edges.
func (p *Pin) Watch(handler func()) error {
	return p.pin.SetInterrupt(machine.PinToggle, func(machine.Pin) { handler() })
}

// Unwatch disables the pin change interrupt.
func (p *Pin) Unwatch() {
	_ = p.pin.SetInterrupt(0, nil)
}
