package capture

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot renders the line level over time (ms) to file.
// The format follows the file extension (png, svg, pdf, ...).
func (c *Capture) Plot(name string) error {
	p := plot.New()
	p.Title.Text = "serial line"
	p.X.Label.Text = "time (ms)"
	p.Y.Label.Text = "level"
	p.Y.Min = -0.5
	p.Y.Max = 1.5

	pts := c.steps()
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(l)

	return p.Save(20*vg.Centimeter, 6*vg.Centimeter, name)
}

// steps returns the level as a step function, one idle bit before the first
// and ten bits after the last edge. Tick wrapping is unrolled.
func (c *Capture) steps() plotter.XYs {
	ms := func(ticks int64) float64 {
		return float64(ticks) * 1000 / float64(c.Clock)
	}
	bit := int64(c.BitTicks())
	level := func(l bool) float64 {
		if l {
			return 1
		}
		return 0
	}

	pts := plotter.XYs{}
	if len(c.Edges) == 0 {
		return append(pts, plotter.XY{X: 0, Y: 1}, plotter.XY{X: ms(10 * bit), Y: 1})
	}

	var t int64
	prev := c.Edges[0].Tick
	cur := true
	pts = append(pts, plotter.XY{X: ms(-bit), Y: 1})

	for _, e := range c.Edges {
		t += int64(e.Tick - prev)
		prev = e.Tick

		pts = append(pts, plotter.XY{X: ms(t), Y: level(cur)}, plotter.XY{X: ms(t), Y: level(e.Level)})
		cur = e.Level
	}

	return append(pts, plotter.XY{X: ms(t + 10*bit), Y: level(cur)})
}
