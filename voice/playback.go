package voice

import (
	"math"

	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/pitch"
)

func (c *Controller) startLocked(freq model.FrequencyPair, id string, src model.SourceCategory, cfg startConfig) (*Voice, error) {
	if _, ok := c.registry.Get(id); ok {
		c.stopLocked(id, ForcedRelease)
	}

	typ := cfg.soundType
	if !cfg.forced {
		typ = c.keysType
		if src == model.SourceSequencer {
			typ = c.seqType
		}
	}

	now := c.ctx.CurrentTime()
	res, buildErr := c.builder.Build(typ, freq.Final, now)
	if buildErr != nil {
		res = c.builder.Fallback(freq.Final, now)
	}
	res.Gain.Connect(c.busFor(src))

	v := &Voice{
		ID:              id,
		Source:          src,
		SoundType:       res.Type,
		SelfStopping:    res.SelfStopping,
		NaturalDuration: res.NaturalDuration,
		BaseFrequency:   freq.Base,
		Bounded:         cfg.bounded,
		KeyIndex:        cfg.keyIndex,
		StopTime:        math.Inf(1),
		Graph:           res,
		Gain:            res.Gain,
	}
	c.registry.Put(v)
	for _, a := range res.Aux {
		c.registry.Put(&Voice{
			ID:            id + a.Suffix,
			ParentID:      id,
			Suffix:        a.Suffix,
			Source:        src,
			SoundType:     res.Type,
			BaseFrequency: freq.Base,
			Ratio:         a.Ratio,
			Bounded:       cfg.bounded,
			KeyIndex:      -1,
			StopTime:      math.Inf(1),
			Node:          a.Source,
			Gain:          a.Gain,
			parent:        v,
		})
	}

	c.announce(v, freq.Final)

	switch {
	case cfg.bounded:
		c.scheduleBounded(v, now, cfg.duration)
	case v.SelfStopping:
		end := now + v.NaturalDuration
		c.stopSources(v, end+sourceSlack)
		v.StopTime = end
		c.collectAfter(v, v.NaturalDuration+collectMargin)
	}
	return v, buildErr
}

func (c *Controller) announce(v *Voice, f float64) {
	if c.out == nil || v.Source != model.SourceKey || v.KeyIndex < 0 {
		return
	}
	note, bend := pitch.FromFrequency(f)
	ch := uint8(v.KeyIndex % 16)
	if err := c.out.NoteOn(ch, note, bend); err != nil {
		c.logger.Warn("midi out note on failed", "id", v.ID, "error", err)
		return
	}
	v.Announced = true
	v.MidiNote = note
	v.MidiChannel = ch
}

// scheduleBounded places the automatic end of a voice started with a
// duration d.
func (c *Controller) scheduleBounded(v *Voice, now, d float64) {
	g := v.Gain.Gain
	stopAt := now + d
	tail, tailed := v.SoundType.ReleaseTail()
	drum := v.Source == model.SourceDrumSynth

	switch {
	case v.SelfStopping:
		stopAt = now + math.Min(d, v.NaturalDuration)
		c.stopSources(v, stopAt+sourceSlack)

	case drum && v.SoundType.DrumVoice():
		// The release of a synthesized drum is no longer than the drum itself.
		natural := v.NaturalDuration
		if natural <= 0 {
			natural = 0.15
		}
		start := now + d
		level := g.ValueAt(start)
		g.CancelScheduledValues(start)
		g.SetValueAtTime(level, start)
		stopAt = start + math.Min(natural, d)
		g.ExponentialRampToValueAtTime(silence, stopAt)
		c.stopSources(v, stopAt+sourceSlack)

	case tailed || drum:
		if !tailed {
			tail = 0.3
		}
		start := now + d
		level := g.ValueAt(start)
		g.CancelScheduledValues(start)
		g.SetValueAtTime(level, start)
		g.ExponentialRampToValueAtTime(silence, start+tail)
		stopAt = start + tail
		c.stopSources(v, stopAt+sourceSlack)

	default:
		hold := math.Max(now, now+d-0.05)
		g.CancelScheduledValues(hold)
		g.SetValueAtTime(v.SoundType.SustainLevel(), hold)
		g.LinearRampToValueAtTime(silence, stopAt)
		c.stopSources(v, stopAt+sourceSlack)
	}

	v.StopTime = stopAt
	c.collectAfter(v, stopAt-now+collectMargin)
}

// stopSources schedules every source of v and of its auxiliary voices to
// end at t.
func (c *Controller) stopSources(v *Voice, t float64) {
	for _, s := range v.sources() {
		s.Stop(t)
	}
	for _, a := range c.registry.Children(v.ID) {
		for _, s := range a.sources() {
			s.Stop(t)
		}
		a.StopTime = t
	}
}

func (c *Controller) stopLocked(id string, release float64) {
	v, ok := c.registry.Get(id)
	if !ok {
		return
	}
	now := c.ctx.CurrentTime()
	v.gc.Cancel()

	if v.Announced && c.out != nil {
		if err := c.out.NoteOff(v.MidiChannel, v.MidiNote); err != nil {
			c.logger.Warn("midi out note off failed", "id", id, "error", err)
		}
	}

	if v.parent != nil {
		for _, s := range v.sources() {
			s.Stop(now + auxStopDelay)
		}
		c.registry.Remove(v)
		return
	}

	if v.Sample {
		v.Node.Stop(now + sourceSlack)
		c.registry.Remove(v)
		return
	}

	for _, a := range c.registry.Children(id) {
		for _, s := range a.sources() {
			s.Stop(now + auxStopDelay)
		}
	}

	length := c.release(v, now, release)
	for _, s := range v.sources() {
		s.Stop(now + length + sourceSlack)
	}
	v.StopTime = now + length
	c.registry.Remove(v)
}

// release cancels the pending envelope of v, pins the gain at its current
// value and installs the release curve. It returns the release length.
func (c *Controller) release(v *Voice, now, requested float64) float64 {
	g := v.Gain.Gain
	level := g.ValueAt(now)
	g.CancelScheduledValues(now)
	g.SetValueAtTime(level, now)

	if v.Bounded || v.SoundType.Percussive() {
		g.LinearRampToValueAtTime(silence, now+ForcedRelease)
		return ForcedRelease
	}
	if tail, ok := v.SoundType.ReleaseTail(); ok {
		g.ExponentialRampToValueAtTime(silence, now+tail)
		return tail
	}
	requested = math.Max(0, requested)
	g.LinearRampToValueAtTime(silence, now+requested)
	return requested
}
