// Package graph is the audio graph the synthesizer schedules against: a
// sample-accurate timeline, parameters with declarative automation and a small
// set of nodes (oscillators, buffer sources, gains, biquad filters) rendered by
// pulling samples from the destination.
//
// All scheduling is declarative. Callers place automation points and start/stop
// instants on the timeline and never wait for them; the timeline only moves
// forward when frames are rendered.
package graph

import (
	"math"
	"sync"
)

const DefaultSampleRate = 44100

// Context owns the timeline and every node created from it. It is safe for
// concurrent use: rendering and graph mutations are serialised by one lock.
type Context struct {
	mu          sync.Mutex
	sampleRate  float64
	frame       int64
	seq         int64
	destination *Gain
}

func NewContext(sampleRate float64) *Context {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	c := &Context{sampleRate: sampleRate}
	c.destination = c.newGain(1)
	c.destination.persistent = true
	return c
}

func (c *Context) SampleRate() float64 {
	return c.sampleRate
}

// CurrentTime is the position of the render head in seconds.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

func (c *Context) now() float64 {
	return float64(c.frame) / c.sampleRate
}

// Destination is the final summing node. It never finishes.
func (c *Context) Destination() *Gain {
	return c.destination
}

// nextSeq orders graph mutations; callers must hold c.mu.
func (c *Context) nextSeq() int64 {
	c.seq++
	return c.seq
}

// Render fills out with the next len(out) mono frames and advances the timeline.
func (c *Context) Render(out []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range out {
		t := c.now()
		v := c.destination.pull(c.frame, t)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[i] = float32(v)
		c.frame++
	}
}

// Advance renders and discards the given number of seconds.
func (c *Context) Advance(seconds float64) {
	frames := int(math.Round(seconds * c.sampleRate))
	buf := make([]float32, 1024)
	for frames > 0 {
		n := len(buf)
		if frames < n {
			n = frames
		}
		c.Render(buf[:n])
		frames -= n
	}
}

// Active reports whether anything is still connected to the destination.
func (c *Context) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now()
	for _, in := range c.destination.inputs {
		if g, ok := in.(*Gain); ok && g.persistent {
			if g.hasLiveInputs(t) {
				return true
			}
			continue
		}
		if !in.done(t) {
			return true
		}
	}
	return false
}
