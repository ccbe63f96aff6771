package graph

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinearRampInterpolates(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0).Gain
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)

	assert := assert.New(t)
	assert.InDelta(0.0, p.ValueAt(0), 1e-9)
	assert.InDelta(0.5, p.ValueAt(0.5), 1e-9)
	assert.InDelta(1.0, p.ValueAt(1), 1e-9)
	assert.InDelta(1.0, p.ValueAt(3), 1e-9)
}

func TestExponentialRampInterpolates(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0).Gain
	p.SetValueAtTime(1, 0)
	p.ExponentialRampToValueAtTime(0.01, 2)

	assert := assert.New(t)
	assert.InDelta(0.1, p.ValueAt(1), 1e-9)
	assert.InDelta(0.01, p.ValueAt(2), 1e-9)
}

func TestExponentialRampFromZeroHolds(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0).Gain
	p.ExponentialRampToValueAtTime(1, 1)
	assert.Equal(t, 0.0, p.ValueAt(0.5))
}

func TestSetTargetApproaches(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0.2).Gain
	p.SetTargetAtTime(1, 0, 0.01)

	assert := assert.New(t)
	assert.InDelta(0.2+0.8*(1-math.Exp(-1)), p.ValueAt(0.01), 1e-9)
	assert.InDelta(1.0, p.ValueAt(1), 1e-9)
}

func TestCancelScheduledValues(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0).Gain
	p.SetValueAtTime(0.5, 0)
	p.LinearRampToValueAtTime(1, 1)
	p.LinearRampToValueAtTime(0, 2)
	p.CancelScheduledValues(1)

	events := p.Events()
	assert.Len(t, events, 1)
	assert.Equal(t, 0.5, p.ValueAt(5))
}

func TestEventsAreOrderedByTimeThenInsertion(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0).Gain
	p.SetValueAtTime(2, 1)
	p.SetValueAtTime(1, 0)
	p.SetValueAtTime(3, 1)

	events := p.Events()
	assert := assert.New(t)
	assert.Equal([]float64{1, 2, 3}, []float64{events[0].Value, events[1].Value, events[2].Value})
	assert.Less(events[1].Seq, events[2].Seq)
	assert.Equal(3.0, p.ValueAt(1))
}

func TestOscillatorRendersUntilStop(t *testing.T) {
	ctx := NewContext(1000)
	osc := ctx.NewOscillator(Square)
	osc.Frequency.SetValueAtTime(10, 0)
	osc.Connect(ctx.Destination())
	osc.Start(0)
	osc.Stop(0.5)

	out := make([]float32, 1000)
	ctx.Render(out)

	assert := assert.New(t)
	assert.Equal(float32(1), out[0])
	assert.Equal(float32(-1), out[60])
	assert.Equal(float32(0), out[600])
	assert.False(ctx.Active())
}

func TestFinishedVoicesArePrunedFromBus(t *testing.T) {
	ctx := NewContext(1000)
	bus := ctx.NewBus(1)
	bus.Connect(ctx.Destination())

	g := ctx.NewGain(1)
	osc := ctx.NewOscillator(Sine)
	osc.Connect(g)
	g.Connect(bus)
	osc.Start(0)
	osc.Stop(0.1)

	assert := assert.New(t)
	assert.True(ctx.Active())
	ctx.Advance(0.2)
	assert.Equal(0, bus.Inputs())
	assert.False(ctx.Active())
	assert.Equal(1, ctx.Destination().Inputs())
}

func TestStopAfterEndIsIgnored(t *testing.T) {
	ctx := NewContext(1000)
	osc := ctx.NewOscillator(Sine)
	osc.Start(0)
	osc.Stop(0.1)
	ctx.Advance(0.2)
	osc.Stop(5)
	assert.Equal(t, 0.1, osc.StopTime())
}

func TestConnectedSeqOrdersMutations(t *testing.T) {
	ctx := NewContext(1000)
	a := ctx.NewGain(1)
	a.Gain.LinearRampToValueAtTime(0, 1)
	b := ctx.NewGain(1)
	b.Connect(ctx.Destination())

	assert.Less(t, a.Gain.Events()[0].Seq, b.ConnectedSeq())
}

func TestBufferSourcePlaysAtRate(t *testing.T) {
	ctx := NewContext(100)
	buf := &Buffer{SampleRate: 100, Channels: [][]float32{{0, 1, 2, 3, 4, 5, 6, 7}}}
	src := ctx.NewBufferSource(buf)
	src.PlaybackRate.SetValueAtTime(2, 0)
	src.Connect(ctx.Destination())
	src.Start(0)

	out := make([]float32, 6)
	ctx.Render(out)
	assert.Equal(t, []float32{0, 2, 4, 6, 0, 0}, out)
}

func TestNoiseBufferRange(t *testing.T) {
	b := NewNoiseBuffer(rand.New(rand.NewSource(1)), 1000, 0.1)
	assert.Equal(t, 100, b.Length())
	assert.InDelta(t, 0.1, b.Duration(), 1e-9)
	for _, v := range b.Channels[0] {
		assert.True(t, v >= -1 && v < 1)
	}
}

func TestLowpassAttenuatesHighFrequency(t *testing.T) {
	ctx := NewContext(8000)
	osc := ctx.NewOscillator(Sine)
	osc.Frequency.SetValueAtTime(3000, 0)
	f := ctx.NewBiquadFilter(Lowpass)
	f.Frequency.SetValueAtTime(100, 0)
	osc.Connect(f)
	f.Connect(ctx.Destination())
	osc.Start(0)

	out := make([]float32, 800)
	ctx.Render(out)
	var peak float64
	for _, v := range out[400:] {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	assert.Less(t, peak, 0.05)
}
