package sound

import (
	"math/rand"
	"testing"

	"github.com/jsphweid/keystation/graph"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(buffers ...*graph.Buffer) (*graph.Context, *Builder) {
	ctx := graph.NewContext(8000)
	return ctx, NewBuilder(ctx, NewPool(buffers...), WithRand(rand.New(rand.NewSource(7))))
}

func testBuffer() *graph.Buffer {
	return &graph.Buffer{SampleRate: 8000, Channels: [][]float32{make([]float32, 800)}}
}

func TestTypeNamesRoundTrip(t *testing.T) {
	for _, typ := range All() {
		parsed, err := Parse(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}
	_, err := Parse("theremin")
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestRoundRobinRotation(t *testing.T) {
	_, b := newTestBuilder(testBuffer(), testBuffer(), testBuffer())

	first, err := b.Build(PianoWav, 220, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, first.SampleIndex)

	var got []int
	for i := 0; i < 4; i++ {
		res, err := b.Build(PianoWav, 330, 0)
		require.NoError(t, err)
		got = append(got, res.SampleIndex)
	}
	assert.Equal(t, []int{1, 2, 0, 1}, got)
	assert.Equal(t, 2, b.Pool().Cursor())
}

func TestOtherTypesDoNotAdvanceCursor(t *testing.T) {
	_, b := newTestBuilder(testBuffer(), testBuffer())
	_, err := b.Build(PianoWav, 220, 0)
	require.NoError(t, err)
	_, err = b.Build(Organ, 220, 0)
	require.NoError(t, err)

	res, err := b.Build(PianoWav, 220, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SampleIndex)
}

func TestSampledToneRate(t *testing.T) {
	_, b := newTestBuilder(testBuffer())
	res, err := b.Build(PianoWav, 440, 0)
	require.NoError(t, err)

	src, ok := res.Primary.(*graph.BufferSource)
	require.True(t, ok)
	assert.InDelta(t, 2.0, src.PlaybackRate.ValueAt(0), 1e-9)
	assert.InDelta(t, 0.6, res.Gain.Gain.ValueAt(0.01), 1e-9)
}

func TestEmptyPoolResolvesToSine(t *testing.T) {
	_, b := newTestBuilder()
	assert.Equal(t, Sine, b.Resolve(PianoWav))

	res, err := b.Build(PianoWav, 440, 0)
	require.NoError(t, err)
	assert.Equal(t, Sine, res.Type)
	assert.Equal(t, -1, res.SampleIndex)
	_, ok := res.Primary.(*graph.Oscillator)
	assert.True(t, ok)
}

func TestSelfStoppingTypesCarryNaturalDuration(t *testing.T) {
	_, b := newTestBuilder()
	cases := map[Type]float64{
		Bell:       1.5,
		Xylophone:  0.35,
		KickDrum:   0.2,
		HiHatNoise: 0.05,
		SynthSnare: 0.2,
	}
	for typ, natural := range cases {
		t.Run(typ.String(), func(t *testing.T) {
			res, err := b.Build(typ, 440, 0)
			require.NoError(t, err)
			assert.True(t, res.SelfStopping)
			assert.Equal(t, natural, res.NaturalDuration)
		})
	}

	res, err := b.Build(PluckTriangle, 440, 0)
	require.NoError(t, err)
	assert.True(t, res.SelfStopping)
	assert.GreaterOrEqual(t, res.NaturalDuration, 0.25)
	assert.Less(t, res.NaturalDuration, 0.35)

	for _, typ := range []Type{Sine, PluckSaw, WarmSaw, SoftPad, LeadSquare, Organ, Synth} {
		res, err := b.Build(typ, 440, 0)
		require.NoError(t, err)
		assert.False(t, res.SelfStopping, typ.String())
	}
}

func TestAuxiliaryLayers(t *testing.T) {
	_, b := newTestBuilder()

	organ, err := b.Build(Organ, 100, 0)
	require.NoError(t, err)
	var suffixes []string
	var ratios []float64
	for _, a := range organ.Aux {
		suffixes = append(suffixes, a.Suffix)
		ratios = append(ratios, a.Ratio)
	}
	assert.Equal(t, []string{"_harm1", "_harm2", "_harm3", "_harm4"}, suffixes)
	assert.Equal(t, []float64{2, 3, 4, 6}, ratios)

	bell, err := b.Build(Bell, 100, 0)
	require.NoError(t, err)
	require.Len(t, bell.Aux, 2)
	assert.Equal(t, "_aux2", bell.Aux[0].Suffix)
	osc := bell.Aux[1].Source.(*graph.Oscillator)
	assert.InDelta(t, 360.0, osc.Frequency.ValueAt(0), 1e-9)

	snare, err := b.Build(SynthSnare, 1000, 0)
	require.NoError(t, err)
	require.Len(t, snare.Aux, 1)
	assert.Equal(t, "_noise", snare.Aux[0].Suffix)
	assert.Equal(t, 0.0, snare.Aux[0].Ratio)
	body := snare.Primary.(*graph.Oscillator)
	assert.InDelta(t, 200.0, body.Frequency.ValueAt(0), 1e-9)
}

func TestHiHatHasNoPrimary(t *testing.T) {
	_, b := newTestBuilder()
	res, err := b.Build(HiHatNoise, 8000, 0)
	require.NoError(t, err)
	assert.Nil(t, res.Primary)
	assert.NotNil(t, res.Noise)
	assert.Len(t, res.Sources(), 1)
}

func TestInvalidFrequencyFails(t *testing.T) {
	_, b := newTestBuilder()
	_, err := b.Build(WarmSaw, 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidFrequency))

	res := b.Fallback(0, 0)
	assert.Equal(t, Sine, res.Type)
	assert.Equal(t, FallbackFrequency, res.Frequency)
}

func TestBuildRecoversFromPanics(t *testing.T) {
	b := NewBuilder(nil, nil)
	res, err := b.Build(Sine, 440, 0)
	assert.Nil(t, res)
	assert.Error(t, err)
}

func TestBuiltVoiceRendersAndEnds(t *testing.T) {
	ctx, b := newTestBuilder()
	res, err := b.Build(KickDrum, 60, 0)
	require.NoError(t, err)
	res.Gain.Connect(ctx.Destination())
	res.Primary.Stop(0.21)

	out := make([]float32, 400)
	ctx.Render(out)
	var peak float32
	for _, v := range out {
		if v > peak {
			peak = v
		}
	}
	assert.Greater(t, peak, float32(0.1))
	ctx.Advance(0.2)
	assert.False(t, ctx.Active())
}
