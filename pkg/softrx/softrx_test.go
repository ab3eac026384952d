package softrx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"softrx/pkg/capture"
	"softrx/pkg/dispatch"
	"softrx/pkg/raspberry"
	"softrx/pkg/ringbuffer"
	"softrx/pkg/softrx"
)

const (
	// 1 MHz clock and 10 kBaud give a bit period of 100 ticks.
	testClock = 1_000_000
	testBaud  = 10_000
	bitTicks  = 100
)

type bus struct {
	t    *testing.T
	line *raspberry.EmuLine
	rx   *softrx.Receiver
}

func newBus(t *testing.T, opts ...softrx.Option) *bus {
	line := raspberry.NewEmuLine(17, testClock)
	rx, err := softrx.Configure(dispatch.New(), line, line, testBaud, opts...)
	require.NoError(t, err)
	return &bus{t: t, line: line, rx: rx}
}

// levels drives the line bit by bit from tick start and returns the tick after the last bit.
func (b *bus) levels(start uint32, bits ...int) uint32 {
	t := start
	for _, bit := range bits {
		b.line.EmuEdge(bit == 1, t)
		t += bitTicks
	}
	return t
}

// send drives the edges of data encoded as 8-N-1 frames, returns the tick of the last edge.
func (b *bus) send(start uint32, gap int, data ...byte) uint32 {
	c := capture.Encode(data, testClock, testBaud, start, gap)
	for _, e := range c.Edges {
		b.line.EmuEdge(e.Level, e.Tick)
	}
	return c.Edges[len(c.Edges)-1].Tick
}

// idle lets the line stay idle after tick long enough for the sweep to complete a frame.
func (b *bus) idle(after uint32) {
	b.line.SetTicks(after + b.rx.IdleTicks() + 1)
	b.rx.Service()
}

func (b *bus) read() []byte {
	var data []byte
	for c, ok := b.rx.Read(); ok; c, ok = b.rx.Read() {
		data = append(data, c)
	}
	return data
}

func TestConfigure(t *testing.T) {
	cases := []struct {
		name  string
		clock uint32
		baud  uint32
		err   error
	}{
		{name: "9600 baud at 80 MHz", clock: 80_000_000, baud: 9600},
		{name: "115200 baud at 1 GHz", clock: 1_000_000_000, baud: 115200},
		{name: "zero baud", clock: testClock, baud: 0, err: softrx.ErrInvalidBaud},
		{name: "baud faster than clock", clock: 1000, baud: 1000, err: softrx.ErrInvalidBaud},
		{name: "idle time exceeds 31 bits", clock: 1_000_000_000, baud: 1, err: softrx.ErrInvalidBaud},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := raspberry.NewEmuLine(4, tc.clock)
			rx, err := softrx.Configure(dispatch.New(), line, line, tc.baud)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 4, rx.Pin())
			assert.Equal(t, tc.baud, rx.Baud())
			assert.Equal(t, (tc.clock/2/tc.baud)<<5, rx.IdleTicks())
			assert.True(t, line.Read(), "pull-up lets the line idle high")
			assert.Equal(t, softrx.NoError, rx.State())
		})
	}
}

func TestConfigureRegistryFull(t *testing.T) {
	reg := dispatch.New()
	gpio := raspberry.NewEmu(testClock)

	for i := 0; i < dispatch.MaxInstances; i++ {
		line, err := gpio.NewEmuLine(i)
		require.NoError(t, err)
		_, err = softrx.Configure(reg, line, line, testBaud)
		require.NoError(t, err)
	}

	line, err := gpio.NewEmuLine(dispatch.MaxInstances)
	require.NoError(t, err)
	_, err = softrx.Configure(reg, line, line, testBaud)
	require.ErrorIs(t, err, dispatch.ErrRegistryFull)
}

func TestSingleFrame(t *testing.T) {
	b := newBus(t)

	// start bit, seven ones, one zero, stop bit: 0x7f
	b.line.EmuEdge(false, 0)
	b.line.EmuEdge(true, 100)
	b.line.EmuEdge(false, 800)
	b.line.EmuEdge(true, 900)

	// the stop bit is still pending
	assert.Empty(t, b.read())

	b.line.SetTicks(900 + b.rx.IdleTicks())
	b.rx.Service()
	assert.Empty(t, b.read(), "not idle yet")

	b.idle(900)
	assert.Equal(t, []byte{0x7f}, b.read())
	assert.Equal(t, softrx.NoError, b.rx.State())

	// further sweeps don't repeat the byte
	b.idle(900 + 2*b.rx.IdleTicks())
	assert.Empty(t, b.read())

	st := b.rx.Stats()
	assert.Equal(t, uint32(1), st.Bytes)
	assert.Equal(t, uint32(1), st.StaleFrames)
	assert.Zero(t, st.FramingErrors)
	assert.Zero(t, st.LongLowErrors)
}

func TestAllBytes(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	for _, gap := range []int{0, 1, 3, 12, 40} {
		b := newBus(t, softrx.WithQueue(512, ringbuffer.Drop))
		last := b.send(1000, gap, data...)
		b.idle(last)

		assert.Equal(t, data, b.read(), "gap %d", gap)
		assert.Equal(t, softrx.NoError, b.rx.State())
		assert.Zero(t, b.rx.Stats().FramingErrors, "gap %d", gap)
	}
}

func TestLongIdleBetweenFrames(t *testing.T) {
	b := newBus(t)

	last := b.send(1000, 0, 'A')
	b.idle(last)
	for i := 0; i < 10; i++ {
		b.idle(last + uint32(i)*b.rx.IdleTicks())
	}

	last = b.send(last+1_000_000, 0, 'B')
	b.idle(last)

	assert.Equal(t, []byte("AB"), b.read())
	assert.Equal(t, uint32(2), b.rx.Stats().Bytes)
}

func TestStaleFrame(t *testing.T) {
	// the line rises after the start bit and n-1 zero data bits and never falls again
	for n := 1; n <= 9; n++ {
		b := newBus(t)

		bits := []int{0}
		for i := 1; i < n; i++ {
			bits = append(bits, 0)
		}
		bits = append(bits, 1)
		end := b.levels(500, bits...)

		assert.Empty(t, b.read(), "%d bits", n)
		b.idle(end)
		assert.Equal(t, []byte{byte(0xff << (n - 1))}, b.read(), "%d bits", n)
		assert.Equal(t, softrx.NoError, b.rx.State())
	}
}

func TestFramingError(t *testing.T) {
	b := newBus(t)

	// 0x55 with a low stop bit
	end := b.levels(1000, 0, 1, 0, 1, 0, 1, 0, 1, 0, 0, 1)
	b.idle(end)

	assert.Empty(t, b.read())
	assert.Equal(t, softrx.StopBitError, b.rx.State())
	assert.Equal(t, uint32(1), b.rx.Stats().FramingErrors)

	// a start bit after an idle line recovers
	last := b.send(end+10_000, 0, 'Z')
	assert.Equal(t, softrx.NoError, b.rx.State())
	b.idle(last)

	assert.Equal(t, []byte("Z"), b.read())
	assert.Equal(t, uint32(1), b.rx.Stats().FramingErrors)
}

func TestLongLow(t *testing.T) {
	b := newBus(t)

	// line low for 12 bit periods
	b.line.EmuEdge(false, 1000)
	b.line.EmuEdge(true, 1000+12*bitTicks)

	assert.Equal(t, softrx.LongLowError, b.rx.State())
	assert.Equal(t, uint32(1), b.rx.Stats().LongLowErrors)
	assert.Zero(t, b.rx.Stats().FramingErrors)

	// a frame right after the violation is not trusted
	last := b.send(1000+13*bitTicks, 0, 'X')
	b.idle(last)
	assert.Empty(t, b.read())
	assert.Equal(t, softrx.LongLowError, b.rx.State())

	// the first start bit after the idle line is
	last = b.send(last+100_000, 0, 'Y')
	b.idle(last)
	assert.Equal(t, []byte("Y"), b.read())
	assert.Equal(t, softrx.NoError, b.rx.State())
}

func TestLineStuckLow(t *testing.T) {
	b := newBus(t)

	// the sweep finds a frame without any further edge, the start bit never ended
	b.line.EmuEdge(false, 0)
	b.idle(bitTicks)
	assert.Empty(t, b.read())
	assert.Equal(t, softrx.StopBitError, b.rx.State())

	b.line.EmuEdge(true, 50*bitTicks)
	assert.Equal(t, softrx.LongLowError, b.rx.State())

	last := b.send(100*bitTicks, 0, 'k')
	b.idle(last)
	assert.Equal(t, []byte("k"), b.read())
	assert.Equal(t, softrx.NoError, b.rx.State())

	st := b.rx.Stats()
	assert.Equal(t, uint32(1), st.FramingErrors)
	assert.Equal(t, uint32(1), st.LongLowErrors)
}

func TestTickWraparound(t *testing.T) {
	for _, start := range []uint32{0xffffffff - 3*bitTicks, 0x7fffffff - 5*bitTicks, 0xffffff00} {
		b := newBus(t)

		last := b.send(start, 1, []byte("wrap")...)
		b.idle(last)

		assert.Equal(t, []byte("wrap"), b.read(), "start %#x", start)
		assert.Equal(t, softrx.NoError, b.rx.State())
	}
}

func TestJitter(t *testing.T) {
	b := newBus(t)

	c := capture.Encode([]byte("jitter"), testClock, testBaud, 5000, 2)
	for i, e := range c.Edges {
		shift := uint32(20)
		if i%2 == 0 {
			b.line.EmuEdge(e.Level, e.Tick+shift)
		} else {
			b.line.EmuEdge(e.Level, e.Tick-shift)
		}
	}
	b.idle(c.Edges[len(c.Edges)-1].Tick + 20)

	assert.Equal(t, []byte("jitter"), b.read())
}

func TestQueueOverflow(t *testing.T) {
	cases := []struct {
		name   string
		policy ringbuffer.Policy
		expect []byte
	}{
		{name: "drop", policy: ringbuffer.Drop, expect: []byte("abcd")},
		{name: "overwrite", policy: ringbuffer.Overwrite, expect: []byte("cdef")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBus(t, softrx.WithQueue(4, tc.policy))
			last := b.send(100, 1, []byte("abcdef")...)
			b.idle(last)

			assert.Equal(t, 4, b.rx.Buffered())
			assert.Equal(t, tc.expect, b.read())

			st := b.rx.Stats()
			assert.Equal(t, uint32(6), st.Bytes)
			assert.Equal(t, uint32(2), st.Drops)
		})
	}
}

func TestReadByte(t *testing.T) {
	b := newBus(t)

	_, err := b.rx.ReadByte()
	require.ErrorIs(t, err, softrx.ErrNoData)

	b.idle(b.send(100, 0, 0xa5))

	c, err := b.rx.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xa5), c)
}
