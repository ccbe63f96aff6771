// Package voice owns the set of sounding voices. The Controller is the only
// writer of the registry: trigger sources (keyboard, sequencer, chords, MIDI)
// go through Start, Stop and MuteAll and never touch voice state directly.
package voice

import (
	"math"

	"github.com/jsphweid/keystation/graph"
	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/pitch"
	"github.com/jsphweid/keystation/schedule"
	"github.com/jsphweid/keystation/sound"
)

// Voice is one sounding unit. Fields are written by the Controller only and
// must be treated as read-only by callers.
type Voice struct {
	ID string
	// ParentID is set on auxiliary voices and names the voice they belong to.
	ParentID string
	Suffix   string

	Source          model.SourceCategory
	SoundType       sound.Type
	SelfStopping    bool
	NaturalDuration float64
	BaseFrequency   float64
	// Ratio is the frequency multiple of an auxiliary layer, 0 if unpitched.
	Ratio float64
	// Bounded voices were started with a duration.
	Bounded  bool
	KeyIndex int

	Announced   bool
	MidiNote    uint8
	MidiChannel uint8

	// Sample voices play a raw buffer with no envelope.
	Sample bool

	// StopTime is the scheduled end on the audio timeline, +Inf while held.
	StopTime float64

	Graph *sound.Result
	Node  graph.Source
	Gain  *graph.Gain

	parent *Voice
	gc     *schedule.Task
}

// Collection is the pending registry cleanup task, nil for held voices.
func (v *Voice) Collection() *schedule.Task {
	return v.gc
}

func (v *Voice) Auxiliary() bool {
	return v.parent != nil
}

func (v *Voice) Held() bool {
	return math.IsInf(v.StopTime, 1)
}

// sources lists every source node the voice owns directly.
func (v *Voice) sources() []graph.Source {
	if v.Graph != nil {
		return v.Graph.Sources()
	}
	if v.Node != nil {
		return []graph.Source{v.Node}
	}
	return nil
}

// pitchParam is the parameter a retune ramps and the value that produces
// frequency f on it.
func (v *Voice) pitchParam(f float64) (*graph.Param, float64, bool) {
	var node graph.Source
	switch {
	case v.Graph != nil:
		node = v.Graph.Primary
	case v.parent != nil:
		if v.Ratio == 0 {
			return nil, 0, false
		}
		node = v.Node
		f *= v.Ratio
	}
	switch n := node.(type) {
	case *graph.Oscillator:
		return n.Frequency, f, true
	case *graph.BufferSource:
		return n.PlaybackRate, pitch.PlaybackRate(f), true
	}
	return nil, 0, false
}
