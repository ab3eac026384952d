// Package raspberry is the watcher for gpio lines
//
// A line is both the input pin and the tick counter of its receiver: inside the
// edge handler Read and Ticks return level and timestamp of the edge being handled.
package raspberry

import (
	"fmt"

	"softrx/pkg/port"
)

var (
	ErrInvalidParam = fmt.Errorf("invalid parameters")
	ErrNotSupported = fmt.Errorf("gpio driver not supported on this platform")
)

// Line is an input line with its own edge timestamps.
type Line interface {
	port.Pin
	port.Clock
}

// GPIO opens lines of a gpio device.
type GPIO interface {
	// NewPin requests the line with the given number.
	NewPin(gpio int) (Line, error)
	// Close releases the device.
	Close() error
}

// Open opens the gpio device of the given driver.
//  * gpiod:   gpio character device (chip, e.g. gpiochip0), kernel edge timestamps
//  * gpiomem: memory mapped rpi gpio (/dev/gpiomem), timestamps taken in the handler
//  * emu:     emulated lines without hardware
func Open(driver, chip string) (GPIO, error) {
	switch driver {
	case "gpiod", "":
		return openChip(chip)
	case "gpiomem":
		return openMem()
	case "emu":
		return NewEmu(NanoSecond), nil
	default:
		return nil, fmt.Errorf("%w: driver %q", ErrInvalidParam, driver)
	}
}

// NanoSecond is the tick frequency of lines with nanosecond timestamps.
const NanoSecond = 1_000_000_000
