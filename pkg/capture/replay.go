package capture

import (
	"softrx/pkg/dispatch"
	"softrx/pkg/raspberry"
	"softrx/pkg/softrx"
)

// Result is the outcome of a replay.
type Result struct {
	Data  []byte
	State softrx.ErrorState
	Stats softrx.Stats
}

// Replay feeds the edges of c to a receiver on an emulated line.
// After the last edge the line stays idle long enough for the receiver to
// complete a pending frame.
func Replay(c *Capture, opts ...softrx.Option) (Result, error) {
	var res Result

	line := raspberry.NewEmuLine(0, c.Clock)
	reg := dispatch.New()
	defer func() { _ = reg.Close() }()

	r, err := softrx.Configure(reg, line, line, c.Baud, opts...)
	if err != nil {
		return res, err
	}

	drain := func() {
		for b, ok := r.Read(); ok; b, ok = r.Read() {
			res.Data = append(res.Data, b)
		}
	}

	// sweep the way a foreground loop would have done it during long gaps
	sweep := func() {
		line.SetTicks(line.Ticks() + r.IdleTicks() + 1)
		r.Service()
		drain()
	}

	for i, e := range c.Edges {
		if i > 0 && e.Tick-line.Ticks() > r.IdleTicks() {
			sweep()
		}
		line.EmuEdge(e.Level, e.Tick)
		drain()
	}
	sweep()

	res.State = r.State()
	res.Stats = r.Stats()
	return res, nil
}
