// Package sound builds the signal graph of a single voice from the fixed
// catalog of sound types. It only constructs and starts nodes and places the
// attack/decay automation; stopping and release belong to the voice package.
package sound

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jsphweid/keystation/graph"
	"github.com/pkg/errors"
)

// FallbackFrequency is used when a failed build had no usable frequency.
const FallbackFrequency = 440.0

var ErrInvalidFrequency = errors.New("invalid frequency")

// Aux is a secondary layer belonging to a voice. It sounds through the
// voice's gain but has its own source that must be stopped with the voice.
type Aux struct {
	Suffix string
	Source graph.Source
	Gain   *graph.Gain
	// Ratio relates the layer's frequency to the voice's; 0 means unpitched.
	Ratio float64
}

// Result holds the handles of a built voice.
type Result struct {
	Type      Type
	Frequency float64

	// Primary is an *graph.Oscillator or a *graph.BufferSource; it is nil for
	// pure noise voices.
	Primary       graph.Source
	Gain          *graph.Gain
	Filter        *graph.BiquadFilter
	Modulator     *graph.Oscillator
	ModulatorGain *graph.Gain
	Noise         *graph.BufferSource
	LFO           *graph.Oscillator
	LFOGain       *graph.Gain
	Aux           []Aux

	SelfStopping    bool
	NaturalDuration float64
	// SampleIndex is the pool index a sampled voice played, -1 otherwise.
	SampleIndex int
}

// Sources lists every source owned directly by the voice, auxiliary layers
// excluded.
func (r *Result) Sources() []graph.Source {
	var res []graph.Source
	if r.Primary != nil {
		res = append(res, r.Primary)
	}
	if r.Modulator != nil {
		res = append(res, r.Modulator)
	}
	if r.Noise != nil {
		res = append(res, r.Noise)
	}
	if r.LFO != nil {
		res = append(res, r.LFO)
	}
	return res
}

type Builder struct {
	ctx  *graph.Context
	pool *Pool

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Builder)

// WithRand makes randomized recipes (pluck length, noise) reproducible.
func WithRand(r *rand.Rand) Option {
	return func(b *Builder) {
		b.rng = r
	}
}

func NewBuilder(ctx *graph.Context, pool *Pool, opts ...Option) *Builder {
	if pool == nil {
		pool = NewPool()
	}
	b := &Builder{
		ctx:  ctx,
		pool: pool,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) Pool() *Pool {
	return b.pool
}

// Resolve maps a requested type to the one that will actually be built.
// Sampled tones become sine while the pool is empty.
func (b *Builder) Resolve(t Type) Type {
	if t == PianoWav && b.pool.Len() == 0 {
		return Sine
	}
	return t
}

// Build constructs and starts a voice at now. Any failure, including a panic
// inside a recipe, is returned as an error and leaves nothing connected
// downstream of the voice gain.
func (b *Builder) Build(t Type, freq, now float64) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errors.Errorf("building %s: %v", t, r)
		}
	}()

	if !validFrequency(freq) {
		return nil, errors.Wrapf(ErrInvalidFrequency, "building %s at %v", t, freq)
	}

	var recipe func(f, now float64) (*Result, error)
	resolved := b.Resolve(t)
	switch resolved {
	case Sine:
		recipe = b.sine
	case PianoWav:
		recipe = b.pianoWav
	case PluckTriangle:
		recipe = b.pluckTriangle
	case PluckSaw:
		recipe = b.pluckSaw
	case WarmSaw:
		recipe = b.warmSaw
	case Bell:
		recipe = b.bell
	case SoftPad:
		recipe = b.softPad
	case Xylophone:
		recipe = b.xylophone
	case LeadSquare:
		recipe = b.leadSquare
	case Organ:
		recipe = b.organ
	case KickDrum:
		recipe = b.kickDrum
	case HiHatNoise:
		recipe = b.hiHatNoise
	case SynthSnare:
		recipe = b.synthSnare
	case Synth:
		recipe = b.synth
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%d", int(t))
	}

	res, err = recipe(freq, now)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s", resolved)
	}
	res.Type = resolved
	res.Frequency = freq
	if resolved != PianoWav {
		res.SampleIndex = -1
	}
	if res.SelfStopping && res.NaturalDuration <= 0 {
		return nil, errors.Errorf("building %s: self-stopping voice without a natural duration", resolved)
	}
	return res, nil
}

// Fallback builds the plain sine voice used when Build fails. An unusable
// frequency is replaced by FallbackFrequency.
func (b *Builder) Fallback(freq, now float64) *Result {
	if !validFrequency(freq) {
		freq = FallbackFrequency
	}
	res, _ := b.sine(freq, now)
	res.Type = Sine
	res.Frequency = freq
	res.SampleIndex = -1
	return res
}

func validFrequency(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func (b *Builder) random() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Float64()
}

func (b *Builder) noise(seconds float64) *graph.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return graph.NewNoiseBuffer(b.rng, b.ctx.SampleRate(), seconds)
}
