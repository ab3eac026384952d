// Package forward writes received bytes to a hardware serial port.
package forward

import (
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is the writing side of a serial port.
type Port interface {
	io.WriteCloser
}

// Forwarder writes the received bytes of one channel to a port.
type Forwarder struct {
	port Port
	// Written is the count of bytes written to the port.
	Written int
}

// Open opens the serial device name with baud.
func Open(name string, baud int) (*Forwarder, error) {
	p, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud, ReadTimeout: time.Second})
	if err != nil {
		return nil, err
	}
	return New(p), nil
}

// New forwards to an already opened port.
func New(p Port) *Forwarder {
	return &Forwarder{port: p}
}

// Write writes b to the port.
func (f *Forwarder) Write(b []byte) (int, error) {
	n, err := f.port.Write(b)
	f.Written += n
	return n, err
}

// Close closes the port.
func (f *Forwarder) Close() error {
	return f.port.Close()
}
