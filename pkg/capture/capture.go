// Package capture holds recorded edges of a serial line and decodes them offline.
package capture

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
	"softrx/pkg/port"
)

var ErrInvalidCapture = errors.New("invalid capture")

// Capture is a recording of the edges of one line.
type Capture struct {
	// Clock is the tick frequency of the edge timestamps.
	Clock uint32 `yaml:"clock"`
	// Baud is the baud rate of the recorded data.
	Baud uint32 `yaml:"baud"`
	// Edges are the transitions in order of time; the line is idle (high) before the first one.
	Edges []port.Edge `yaml:"edges"`
}

// Load reads a capture from a yaml file.
func Load(name string) (*Capture, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var c Capture
	if err = yaml.NewDecoder(file).Decode(&c); err != nil {
		return nil, err
	}

	if c.Clock == 0 || c.Baud == 0 {
		return nil, fmt.Errorf("%w: clock and baud are required", ErrInvalidCapture)
	}
	return &c, nil
}

// Save writes the capture to a yaml file.
func (c *Capture) Save(name string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(name, b, 0o644)
}

// BitTicks returns the length of a bit period in ticks.
func (c *Capture) BitTicks() uint32 {
	return c.Clock / c.Baud
}

// Encode returns the edges of data sent as 8-N-1 frames, starting at tick start.
// gap is the count of idle bit periods after each frame.
func Encode(data []byte, clock, baud, start uint32, gap int) *Capture {
	c := &Capture{Clock: clock, Baud: baud}
	bitTicks := c.BitTicks()

	t := start
	level := true

	send := func(bit bool) {
		if bit != level {
			c.Edges = append(c.Edges, port.Edge{Tick: t, Level: bit})
			level = bit
		}
		t += bitTicks
	}

	for _, b := range data {
		// start bit, data bits LSB first, stop bit
		send(false)
		for i := 0; i < 8; i++ {
			send(b&(1<<i) != 0)
		}
		send(true)

		for i := 0; i < gap; i++ {
			send(true)
		}
	}

	return c
}
