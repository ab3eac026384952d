// Package mcu binds receivers to the pins of a microcontroller (TinyGo).
//
// A Pin is both port.Pin and port.Clock:
//
//	p := mcu.NewPin(machine.D2)
//	rx, err := softrx.Configure(dispatch.New(), p, p, 9600)
//
// The foreground loop calls rx.Service() at least once per byte time.
package mcu
