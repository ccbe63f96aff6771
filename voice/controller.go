package voice

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/jsphweid/keystation/graph"
	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/pitch"
	"github.com/jsphweid/keystation/schedule"
	"github.com/jsphweid/keystation/sound"
)

const (
	// DefaultRelease is the fade applied by Stop to sustained sounds.
	DefaultRelease = 0.15
	// ForcedRelease is used for id collisions and mutes.
	ForcedRelease = 0.01
	DefaultVolume = 0.8

	collectMargin = 0.05
	auxStopDelay  = 0.02
	sourceSlack   = 0.01
	retuneRamp    = 0.01
	silence       = 0.0001
	idleDelay     = 200 * time.Millisecond
)

// NoteSender announces key voices on MIDI-out.
type NoteSender interface {
	NoteOn(channel, note uint8, bend uint16) error
	NoteOff(channel, note uint8) error
}

// Notifier receives non-fatal warnings meant for the operator, such as a
// sound that could not be built and was replaced by a sine.
type Notifier func(err error)

type Bus int

const (
	KeysBus Bus = iota
	SequencerBus
)

type Controller struct {
	mu       sync.Mutex
	ctx      *graph.Context
	builder  *sound.Builder
	sched    schedule.Scheduler
	registry *Registry
	buses    [2]*graph.Gain
	keysType sound.Type
	seqType  sound.Type
	shift    float64
	out      NoteSender
	notifier Notifier
	logger   *slog.Logger

	live      bool
	idle      func(func())
	listeners []func(bool)
	onMute    []func()
}

type Option func(*Controller)

func WithScheduler(s schedule.Scheduler) Option {
	return func(c *Controller) {
		c.sched = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

func WithNoteSender(s NoteSender) Option {
	return func(c *Controller) {
		c.out = s
	}
}

// WithIdleDelay sets how long the engine must stay silent before listeners
// hear that no voice is live.
func WithIdleDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.idle = debounce.New(d)
	}
}

func NewController(ctx *graph.Context, builder *sound.Builder, opts ...Option) *Controller {
	c := &Controller{
		ctx:      ctx,
		builder:  builder,
		sched:    schedule.Real{},
		registry: NewRegistry(),
		keysType: sound.PianoWav,
		seqType:  sound.Sine,
		logger:   slog.Default(),
		idle:     debounce.New(idleDelay),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = func(err error) {
			c.logger.Warn("sound fallback", "error", err)
		}
	}
	for i := range c.buses {
		c.buses[i] = ctx.NewBus(DefaultVolume)
		c.buses[i].Connect(ctx.Destination())
	}
	return c
}

func (c *Controller) Context() *graph.Context {
	return c.ctx
}

func (c *Controller) Builder() *sound.Builder {
	return c.builder
}

func (c *Controller) Bus(b Bus) *graph.Gain {
	return c.buses[b]
}

// SetVolume glides a master bus to level.
func (c *Controller) SetVolume(b Bus, level float64) {
	c.buses[b].Gain.SetTargetAtTime(level, c.ctx.CurrentTime(), 0.01)
}

// SetSoundTypes selects the sound used when a start does not force one:
// keys for everything but sequencer voices, seq for those.
func (c *Controller) SetSoundTypes(keys, seq sound.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keysType, c.seqType = keys, seq
}

func (c *Controller) SoundTypes() (keys, seq sound.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keysType, c.seqType
}

// SetNoteSender enables MIDI-out; nil disables it.
func (c *Controller) SetNoteSender(s NoteSender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = s
}

// OnMute registers a hook run by MuteAll after every voice was stopped.
func (c *Controller) OnMute(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMute = append(c.onMute, f)
}

// OnActivity registers a listener for changes of AnyLive. Going live is
// reported at once, going idle only after the idle delay.
func (c *Controller) OnActivity(f func(live bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, f)
}

func (c *Controller) Live(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.registry.Get(id)
	return ok
}

func (c *Controller) Voice(id string) (*Voice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Get(id)
}

func (c *Controller) AnyLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Len() > 0
}

// IDs lists the live voice ids, auxiliary voices included.
func (c *Controller) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.IDs()
}

func (c *Controller) PitchShift() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shift
}

type startConfig struct {
	duration  float64
	bounded   bool
	soundType sound.Type
	forced    bool
	keyIndex  int
}

type StartOption func(*startConfig)

// WithDuration bounds the note; it stops on its own after d seconds.
func WithDuration(d float64) StartOption {
	return func(s *startConfig) {
		s.duration = math.Max(0, d)
		s.bounded = true
	}
}

func WithSoundType(t sound.Type) StartOption {
	return func(s *startConfig) {
		s.soundType = t
		s.forced = true
	}
}

// WithKeyIndex ties the voice to a keyboard key, which makes it eligible for
// MIDI-out on channel keyIndex mod 16.
func WithKeyIndex(i int) StartOption {
	return func(s *startConfig) {
		s.keyIndex = i
	}
}

// Start builds and connects a voice under id, stopping any live voice with
// the same id first. Build failures never reach the caller: a sine voice is
// played instead and the notifier is told.
func (c *Controller) Start(freq model.FrequencyPair, id string, src model.SourceCategory, opts ...StartOption) *Voice {
	cfg := startConfig{keyIndex: -1}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.mu.Lock()
	v, buildErr := c.startLocked(freq, id, src, cfg)
	c.mu.Unlock()

	if buildErr != nil {
		c.notifier(buildErr)
	}
	c.publish()
	return v
}

// StartSample plays a decoded buffer once, with no envelope. Drum samples
// use it.
func (c *Controller) StartSample(id string, buf *graph.Buffer, src model.SourceCategory) *Voice {
	c.mu.Lock()
	if _, ok := c.registry.Get(id); ok {
		c.stopLocked(id, ForcedRelease)
	}
	now := c.ctx.CurrentTime()
	node := c.ctx.NewBufferSource(buf)
	node.Connect(c.busFor(src))
	node.Start(now)

	v := &Voice{
		ID:        id,
		Source:    src,
		Sample:    true,
		KeyIndex:  -1,
		StopTime:  now + buf.Duration(),
		Node:      node,
		SoundType: sound.Sine,
	}
	c.registry.Put(v)
	c.collectAfter(v, buf.Duration()+collectMargin)
	c.mu.Unlock()

	c.publish()
	return v
}

// Stop releases the voice under id. Stopping an id that is not live is a
// no-op.
func (c *Controller) Stop(id string, release float64) {
	c.mu.Lock()
	c.stopLocked(id, release)
	c.mu.Unlock()
	c.publish()
}

// StopCategories force-stops every voice started by one of the sources.
func (c *Controller) StopCategories(sources ...model.SourceCategory) {
	c.mu.Lock()
	for _, v := range c.registry.Voices() {
		if v.parent != nil {
			continue
		}
		for _, s := range sources {
			if v.Source == s {
				c.stopLocked(v.ID, ForcedRelease)
				break
			}
		}
	}
	c.mu.Unlock()
	c.publish()
}

// MuteAll force-stops every voice and then runs the mute hooks, which stop
// arpeggios and clear chord state.
func (c *Controller) MuteAll() {
	c.mu.Lock()
	for _, id := range c.registry.IDs() {
		c.stopLocked(id, ForcedRelease)
	}
	hooks := append([]func(){}, c.onMute...)
	c.mu.Unlock()

	for _, h := range hooks {
		h()
	}
	c.publish()
}

// RetunePitch shifts every live voice to base * 2^(semitones/12), gliding
// over 10ms.
func (c *Controller) RetunePitch(semitones float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shift = semitones
	now := c.ctx.CurrentTime()
	factor := pitch.Factor(semitones)
	for _, v := range c.registry.Voices() {
		if v.Sample || v.BaseFrequency <= 0 || fixedPitch(v.SoundType) {
			continue
		}
		p, target, ok := v.pitchParam(v.BaseFrequency * factor)
		if !ok {
			continue
		}
		current := p.ValueAt(now)
		p.CancelScheduledValues(now)
		p.SetValueAtTime(current, now)
		p.LinearRampToValueAtTime(target, now+retuneRamp)
	}
}

// fixedPitch types sweep their oscillator frequency from the moment they
// start. A retune ramp would cancel that sweep, so they keep their pitch.
func fixedPitch(t sound.Type) bool {
	return t == sound.KickDrum || t == sound.HiHatNoise || t == sound.SynthSnare
}

func (c *Controller) busFor(src model.SourceCategory) *graph.Gain {
	if src.Sequenced() {
		return c.buses[SequencerBus]
	}
	return c.buses[KeysBus]
}

func (c *Controller) publish() {
	c.mu.Lock()
	live := c.registry.Len() > 0
	wasLive := c.live
	listeners := append([]func(bool){}, c.listeners...)
	if live {
		c.live = true
	}
	c.mu.Unlock()

	switch {
	case live && !wasLive:
		for _, l := range listeners {
			l(true)
		}
	case !live && wasLive:
		c.idle(c.settle)
	}
}

// settle reports idleness if nothing started since the idle delay began.
func (c *Controller) settle() {
	c.mu.Lock()
	idle := c.live && c.registry.Len() == 0
	if idle {
		c.live = false
	}
	listeners := append([]func(bool){}, c.listeners...)
	c.mu.Unlock()

	if idle {
		for _, l := range listeners {
			l(false)
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// collectAfter schedules removal of v from the registry. The removal only
// happens if v is still the voice registered under its id.
func (c *Controller) collectAfter(v *Voice, delay float64) {
	v.gc = c.sched.After(seconds(delay), func() {
		c.mu.Lock()
		c.registry.Remove(v)
		c.mu.Unlock()
		c.publish()
	})
}
