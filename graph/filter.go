package graph

import "math"

type FilterType int

const (
	Lowpass FilterType = iota
	Highpass
	Bandpass
)

func (f FilterType) String() string {
	return [...]string{"lowpass", "highpass", "bandpass"}[f]
}

// BiquadFilter is a second order RBJ filter with automatable cutoff and Q.
type BiquadFilter struct {
	base
	mixer
	Type      FilterType
	Frequency *Param
	Q         *Param

	x1, x2, y1, y2 float64
}

func (c *Context) NewBiquadFilter(typ FilterType) *BiquadFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := &BiquadFilter{
		Type:      typ,
		Frequency: newParam(c, 350),
		Q:         newParam(c, 1),
	}
	f.base = newBase(c, f)
	return f
}

func (f *BiquadFilter) Connect(dst Input) { f.connect(f, dst) }
func (f *BiquadFilter) Disconnect()       { f.disconnect(f) }

func (f *BiquadFilter) process(frame int64, t float64) float64 {
	x := f.sum(frame, t)
	sr := f.ctx.sampleRate
	fc := math.Max(10, math.Min(f.Frequency.at(frame, t), 0.49*sr))
	q := math.Max(1e-4, f.Q.at(frame, t))

	w0 := 2 * math.Pi * fc / sr
	cos, sin := math.Cos(w0), math.Sin(w0)
	alpha := sin / (2 * q)

	var b0, b1, b2 float64
	switch f.Type {
	case Highpass:
		b0 = (1 + cos) / 2
		b1 = -(1 + cos)
		b2 = b0
	case Bandpass:
		b0 = alpha
		b2 = -alpha
	default:
		b0 = (1 - cos) / 2
		b1 = 1 - cos
		b2 = b0
	}
	a0 := 1 + alpha
	a1 := -2 * cos
	a2 := 1 - alpha

	y := (b0*x + b1*f.x1 + b2*f.x2 - a1*f.y1 - a2*f.y2) / a0
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

func (f *BiquadFilter) finished(t float64) bool {
	return f.drained(t)
}
