//go:build tinygo

package softrx

import "runtime/interrupt"

type interruptState = interrupt.State

// disableInterrupts disables interrupts and returns the previous state.
// The edge interrupt must not preempt a sweep, it would wait for it forever.
func disableInterrupts() interruptState {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state.
func restoreInterrupts(state interruptState) {
	interrupt.Restore(state)
}
