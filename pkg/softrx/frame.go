package softrx

import "sync/atomic"

// addBits shifts up to numBits bits of the given level into the frame register,
// LSB first, and checks the frame once all of its bits are in.
// It is shared by the edge handler and the idle sweep.
func (r *Receiver) addBits(numBits uint8, one bool) {
	for i := uint8(0); i < numBits && r.bitCounter <= frameBits; i++ {
		r.bitBuffer >>= 1
		if one {
			r.bitBuffer |= stopBit
		}
		r.bitCounter++
	}

	// in error state the counter stays above frameBits and further bits are
	// ignored until a start bit after an idle line resets it
	if r.State() != NoError || r.bitCounter <= frameBits {
		return
	}

	// start bit (bit 0) must be 0, stop bit (bit 9) must be 1
	if r.bitBuffer&controlMask == stopBit {
		r.queue.Put(byte(r.bitBuffer >> 1))
		r.stats.bytes.Add(1)
	} else {
		r.state.Store(uint32(StopBitError))
	}

	r.bitCounter = 0
	r.bitBuffer = 0
}

// Stats holds the counters of a receiver.
type Stats struct {
	// Bytes is the count of decoded bytes.
	Bytes uint32 `json:"bytes"`
	// FramingErrors is the count of frames with an invalid start or stop bit.
	FramingErrors uint32 `json:"framingErrors"`
	// LongLowErrors is the count of line low periods longer than a frame.
	LongLowErrors uint32 `json:"longLowErrors"`
	// StaleFrames is the count of frames completed by Service.
	StaleFrames uint32 `json:"staleFrames"`
	// Drops is the count of bytes lost because the receive queue was full.
	Drops uint32 `json:"drops"`
}

type counters struct {
	bytes   atomic.Uint32
	framing atomic.Uint32
	longLow atomic.Uint32
	stale   atomic.Uint32
}

// commit counts an error state that is entered and kept by one edge or sweep.
// A framing error that is cleared by the same edge is not counted.
func (c *counters) commit(prev, cur ErrorState) {
	if prev == cur {
		return
	}

	switch cur {
	case StopBitError:
		c.framing.Add(1)
	case LongLowError:
		c.longLow.Add(1)
	}
}

// Stats returns a snapshot of the receiver counters.
func (r *Receiver) Stats() Stats {
	return Stats{
		Bytes:         r.stats.bytes.Load(),
		FramingErrors: r.stats.framing.Load(),
		LongLowErrors: r.stats.longLow.Load(),
		StaleFrames:   r.stats.stale.Load(),
		Drops:         r.queue.Drops(),
	}
}
