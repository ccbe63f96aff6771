package sound

import (
	"fmt"

	"github.com/jsphweid/keystation/graph"
	"github.com/jsphweid/keystation/pitch"
	"github.com/pkg/errors"
)

func (b *Builder) osc(w graph.Waveform, f, now float64) *graph.Oscillator {
	o := b.ctx.NewOscillator(w)
	o.Frequency.SetValueAtTime(f, now)
	return o
}

// attack ramps g from silence to peak.
func attack(g *graph.Gain, now, peak, length float64) {
	g.Gain.SetValueAtTime(0, now)
	g.Gain.LinearRampToValueAtTime(peak, now+length)
}

func (b *Builder) lowpass(freq, q, now float64) *graph.BiquadFilter {
	f := b.ctx.NewBiquadFilter(graph.Lowpass)
	f.Frequency.SetValueAtTime(freq, now)
	f.Q.SetValueAtTime(q, now)
	return f
}

func (b *Builder) sine(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)
	o := b.osc(graph.Sine, f, now)
	o.Connect(g)
	attack(g, now, 0.3, 0.02)
	o.Start(now)
	return &Result{Primary: o, Gain: g}, nil
}

func (b *Builder) pianoWav(f, now float64) (*Result, error) {
	buf, idx, ok := b.pool.Next()
	if !ok {
		return nil, errors.New("sample pool is empty")
	}
	src := b.ctx.NewBufferSource(buf)
	src.PlaybackRate.SetValueAtTime(pitch.PlaybackRate(f), now)
	g := b.ctx.NewGain(0)
	attack(g, now, 0.6, 0.01)
	src.Connect(g)
	src.Start(now)
	return &Result{Primary: src, Gain: g, SampleIndex: idx}, nil
}

func (b *Builder) pluckTriangle(f, now float64) (*Result, error) {
	natural := 0.25 + b.random()*0.1
	g := b.ctx.NewGain(0)
	o := b.osc(graph.Triangle, f, now)
	o.Connect(g)
	attack(g, now, 0.7, 0.005)
	g.Gain.ExponentialRampToValueAtTime(0.001, now+natural)
	o.Start(now)
	return &Result{Primary: o, Gain: g, SelfStopping: true, NaturalDuration: natural}, nil
}

func (b *Builder) pluckSaw(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)
	o := b.osc(graph.Sawtooth, f, now)
	lp := b.ctx.NewBiquadFilter(graph.Lowpass)
	lp.Q.SetValueAtTime(1, now)
	lp.Frequency.SetValueAtTime(5000, now)
	lp.Frequency.ExponentialRampToValueAtTime(300, now+0.15)
	lp.Frequency.ExponentialRampToValueAtTime(200, now+0.4)
	o.Connect(lp)
	lp.Connect(g)
	attack(g, now, 0.5, 0.01)
	g.Gain.ExponentialRampToValueAtTime(0.2, now+0.1)
	g.Gain.ExponentialRampToValueAtTime(0.1, now+0.3)
	o.Start(now)
	return &Result{Primary: o, Gain: g, Filter: lp, NaturalDuration: 0.4}, nil
}

func (b *Builder) warmSaw(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)
	o := b.osc(graph.Sawtooth, f, now)
	lp := b.lowpass(800, 0.7, now)
	o.Connect(lp)
	lp.Connect(g)
	attack(g, now, 0.4, 0.02)
	o.Start(now)
	return &Result{Primary: o, Gain: g, Filter: lp}, nil
}

func (b *Builder) bell(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)
	attack(g, now, 0.4, 0.005)
	g.Gain.ExponentialRampToValueAtTime(0.0001, now+1.5)

	o := b.osc(graph.Sine, f, now)
	o.Connect(g)
	o.Start(now)

	res := &Result{Primary: o, Gain: g, SelfStopping: true, NaturalDuration: 1.5}
	partials := []struct {
		suffix string
		wave   graph.Waveform
		ratio  float64
		level  float64
	}{
		{"_aux2", graph.Triangle, 2.4, 0.2},
		{"_aux3", graph.Sine, 3.6, 0.1},
	}
	for _, p := range partials {
		po := b.osc(p.wave, f*p.ratio, now)
		pg := b.ctx.NewGain(p.level)
		pg.Gain.SetValueAtTime(p.level, now)
		po.Connect(pg)
		pg.Connect(g)
		po.Start(now)
		res.Aux = append(res.Aux, Aux{Suffix: p.suffix, Source: po, Gain: pg, Ratio: p.ratio})
	}
	return res, nil
}

func (b *Builder) softPad(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)
	g.Gain.SetValueAtTime(0, now)
	g.Gain.LinearRampToValueAtTime(0.3, now+0.8)
	lp := b.lowpass(1000, 0.5, now)
	lp.Connect(g)

	o1 := b.osc(graph.Sawtooth, f, now)
	o1.Detune.SetValueAtTime(-5, now)
	o1.Connect(lp)
	o1.Start(now)

	o2 := b.osc(graph.Sawtooth, f, now)
	o2.Detune.SetValueAtTime(5, now)
	o2.Connect(lp)
	o2.Start(now)

	return &Result{
		Primary: o1,
		Gain:    g,
		Filter:  lp,
		Aux:     []Aux{{Suffix: "_aux2", Source: o2, Ratio: 1}},
	}, nil
}

func (b *Builder) xylophone(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)
	carrier := b.osc(graph.Sine, f, now)
	carrier.Connect(g)

	mod := b.osc(graph.Sine, f*1.5, now)
	modGain := b.ctx.NewGain(0)
	modGain.Gain.SetValueAtTime(0, now)
	modGain.Gain.LinearRampToValueAtTime(f*2, now+0.01)
	modGain.Gain.ExponentialRampToValueAtTime(f*0.5, now+0.1)
	modGain.Gain.ExponentialRampToValueAtTime(1, now+0.3)
	mod.Connect(modGain)
	modGain.Connect(carrier.Frequency)

	attack(g, now, 0.5, 0.01)
	g.Gain.ExponentialRampToValueAtTime(0.001, now+0.3)

	carrier.Start(now)
	mod.Start(now)
	return &Result{
		Primary:         carrier,
		Gain:            g,
		Modulator:       mod,
		ModulatorGain:   modGain,
		SelfStopping:    true,
		NaturalDuration: 0.35,
	}, nil
}

func (b *Builder) leadSquare(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)
	o := b.osc(graph.Square, f, now)
	lp := b.ctx.NewBiquadFilter(graph.Lowpass)
	lp.Q.SetValueAtTime(5, now)
	lp.Frequency.SetValueAtTime(100, now)
	lp.Frequency.ExponentialRampToValueAtTime(3000, now+0.05)
	lp.Frequency.ExponentialRampToValueAtTime(800, now+0.2)
	o.Connect(lp)
	lp.Connect(g)
	attack(g, now, 0.3, 0.01)
	o.Start(now)
	return &Result{Primary: o, Gain: g, Filter: lp}, nil
}

var (
	organHarmonics = []float64{1, 2, 3, 4, 6}
	organLevels    = []float64{1, 0.6, 0.4, 0.3, 0.2}
)

func (b *Builder) organ(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)
	attack(g, now, 0.2, 0.01)

	res := &Result{Gain: g}
	for i, h := range organHarmonics {
		o := b.osc(graph.Sine, f*h, now)
		hg := b.ctx.NewGain(organLevels[i])
		hg.Gain.SetValueAtTime(organLevels[i], now)
		o.Connect(hg)
		hg.Connect(g)
		o.Start(now)
		if i == 0 {
			res.Primary = o
			continue
		}
		res.Aux = append(res.Aux, Aux{Suffix: fmt.Sprintf("_harm%d", i), Source: o, Gain: hg, Ratio: h})
	}
	return res, nil
}

func (b *Builder) kickDrum(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)
	o := b.osc(graph.Sine, 150, now)
	o.Frequency.ExponentialRampToValueAtTime(50, now+0.05)
	attack(g, now, 0.8, 0.005)
	g.Gain.ExponentialRampToValueAtTime(0.001, now+0.2)
	o.Connect(g)
	o.Start(now)
	return &Result{Primary: o, Gain: g, SelfStopping: true, NaturalDuration: 0.2}, nil
}

func (b *Builder) hiHatNoise(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)
	src := b.ctx.NewBufferSource(b.noise(0.1))
	hp := b.ctx.NewBiquadFilter(graph.Highpass)
	hp.Frequency.SetValueAtTime(7000, now)
	src.Connect(hp)
	hp.Connect(g)
	attack(g, now, 0.3, 0.002)
	g.Gain.ExponentialRampToValueAtTime(0.0001, now+0.05)
	src.Start(now)
	return &Result{Gain: g, Filter: hp, Noise: src, SelfStopping: true, NaturalDuration: 0.05}, nil
}

func (b *Builder) synthSnare(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)

	noise := b.ctx.NewBufferSource(b.noise(0.2))
	bp := b.ctx.NewBiquadFilter(graph.Bandpass)
	bp.Frequency.SetValueAtTime(3000, now)
	bp.Q.SetValueAtTime(1, now)
	noiseGain := b.ctx.NewGain(0)
	attack(noiseGain, now, 0.5, 0.005)
	noiseGain.Gain.ExponentialRampToValueAtTime(0.001, now+0.1)
	noise.Connect(bp)
	bp.Connect(noiseGain)
	noiseGain.Connect(g)
	noise.Start(now)

	bodyFreq := 200.0
	if f > 50 && f < 800 {
		bodyFreq = f
	}
	body := b.osc(graph.Triangle, bodyFreq, now)
	body.Frequency.ExponentialRampToValueAtTime(bodyFreq*0.6, now+0.08)
	bodyGain := b.ctx.NewGain(0)
	attack(bodyGain, now, 0.6, 0.01)
	bodyGain.Gain.ExponentialRampToValueAtTime(0.001, now+0.15)
	body.Connect(bodyGain)
	bodyGain.Connect(g)
	body.Start(now)

	attack(g, now, 0.7, 0.01)
	g.Gain.ExponentialRampToValueAtTime(0.001, now+0.2)

	return &Result{
		Primary:         body,
		Gain:            g,
		Aux:             []Aux{{Suffix: "_noise", Source: noise, Gain: noiseGain}},
		SelfStopping:    true,
		NaturalDuration: 0.2,
	}, nil
}

func (b *Builder) synth(f, now float64) (*Result, error) {
	g := b.ctx.NewGain(0)
	o := b.osc(graph.Sawtooth, f, now)
	lp := b.lowpass(f*3, 0.8, now)

	lfo := b.osc(graph.Square, 8, now)
	lfoGain := b.ctx.NewGain(8)
	lfoGain.Gain.SetValueAtTime(8, now)
	lfo.Connect(lfoGain)
	lfoGain.Connect(o.Detune)

	o.Connect(lp)
	lp.Connect(g)
	attack(g, now, 0.4, 0.05)
	o.Start(now)
	lfo.Start(now)
	return &Result{Primary: o, Gain: g, Filter: lp, LFO: lfo, LFOGain: lfoGain}, nil
}
