package graph

import (
	"math"
	"math/rand"
)

// Waveform of an Oscillator.
type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

func (w Waveform) String() string {
	return [...]string{"sine", "square", "sawtooth", "triangle"}[w]
}

// Source is a node with a start/stop lifetime.
type Source interface {
	Node
	Start(t float64)
	Stop(t float64)
	StopTime() float64
}

type lifetime struct {
	started bool
	start   float64
	stop    float64
}

func (l *lifetime) playing(t float64) bool {
	return l.started && t >= l.start && t < l.stop
}

func (l *lifetime) ended(t float64) bool {
	return l.started && t >= l.stop
}

// setStop replaces any previous stop instant unless the source already ended.
func (l *lifetime) setStop(now, t float64) {
	if l.ended(now) {
		return
	}
	if t < now {
		t = now
	}
	l.stop = t
}

type Oscillator struct {
	base
	lifetime
	Type      Waveform
	Frequency *Param
	// Detune is in cents.
	Detune *Param
	phase  float64
}

func (c *Context) NewOscillator(w Waveform) *Oscillator {
	c.mu.Lock()
	defer c.mu.Unlock()
	o := &Oscillator{
		Type:      w,
		Frequency: newParam(c, 440),
		Detune:    newParam(c, 0),
		lifetime:  lifetime{stop: math.Inf(1)},
	}
	o.base = newBase(c, o)
	return o
}

func (o *Oscillator) Connect(dst Input) { o.connect(o, dst) }
func (o *Oscillator) Disconnect()       { o.disconnect(o) }

func (o *Oscillator) Start(t float64) {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	o.started, o.start = true, t
}

func (o *Oscillator) Stop(t float64) {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	o.setStop(o.ctx.now(), t)
}

func (o *Oscillator) StopTime() float64 {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.stop
}

func (o *Oscillator) process(frame int64, t float64) float64 {
	if !o.playing(t) {
		return 0
	}
	f := o.Frequency.at(frame, t)
	if d := o.Detune.at(frame, t); d != 0 {
		f *= math.Exp2(d / 1200)
	}
	p := o.phase
	o.phase += f / o.ctx.sampleRate
	o.phase -= math.Floor(o.phase)
	switch o.Type {
	case Square:
		if p < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*p - 1
	case Triangle:
		if p < 0.5 {
			return 4*p - 1
		}
		return 3 - 4*p
	}
	return math.Sin(2 * math.Pi * p)
}

func (o *Oscillator) finished(t float64) bool {
	return o.ended(t)
}

// Buffer is decoded PCM audio, one float32 slice per channel.
type Buffer struct {
	SampleRate float64
	Channels   [][]float32
}

func (b *Buffer) Length() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Length()) / b.SampleRate
}

// NewNoiseBuffer fills a mono buffer with white noise in [-1, 1).
func NewNoiseBuffer(rng *rand.Rand, sampleRate, seconds float64) *Buffer {
	n := int(sampleRate * seconds)
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(rng.Float64()*2 - 1)
	}
	return &Buffer{SampleRate: sampleRate, Channels: [][]float32{data}}
}

// BufferSource plays a Buffer once at a variable rate.
type BufferSource struct {
	base
	lifetime
	Buffer       *Buffer
	PlaybackRate *Param
	pos          float64
	exhausted    bool
}

func (c *Context) NewBufferSource(b *Buffer) *BufferSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &BufferSource{
		Buffer:       b,
		PlaybackRate: newParam(c, 1),
		lifetime:     lifetime{stop: math.Inf(1)},
	}
	s.base = newBase(c, s)
	return s
}

func (s *BufferSource) Connect(dst Input) { s.connect(s, dst) }
func (s *BufferSource) Disconnect()       { s.disconnect(s) }

func (s *BufferSource) Start(t float64) {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.started, s.start = true, t
}

func (s *BufferSource) Stop(t float64) {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.setStop(s.ctx.now(), t)
}

func (s *BufferSource) StopTime() float64 {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.stop
}

func (s *BufferSource) process(frame int64, t float64) float64 {
	if !s.playing(t) || s.exhausted {
		return 0
	}
	n := s.Buffer.Length()
	i := int(s.pos)
	if i >= n || i < 0 {
		s.exhausted = true
		return 0
	}
	frac := s.pos - float64(i)
	var v float64
	for _, ch := range s.Buffer.Channels {
		a := float64(ch[i])
		b := a
		if i+1 < n {
			b = float64(ch[i+1])
		}
		v += a + (b-a)*frac
	}
	v /= float64(len(s.Buffer.Channels))
	s.pos += s.PlaybackRate.at(frame, t) * s.Buffer.SampleRate / s.ctx.sampleRate
	return v
}

func (s *BufferSource) finished(t float64) bool {
	return s.ended(t) || s.exhausted
}
