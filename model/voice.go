package model

// FrequencyPair carries the frequency to sound now and the unshifted
// frequency a later global retune is applied to.
type FrequencyPair struct {
	Final float64 `json:"final"`
	Base  float64 `json:"base"`
}

// Fixed is a pair that ignores any pitch shift, used for drum fallbacks.
func Fixed(f float64) FrequencyPair {
	return FrequencyPair{Final: f, Base: f}
}

// SourceCategory names what triggered a voice. It selects the master bus,
// the default sound type and which bulk stop operations reach the voice.
type SourceCategory string

const (
	SourceKey        SourceCategory = "key"
	SourceSequencer  SourceCategory = "sequencer"
	SourceDrumSynth  SourceCategory = "sequencer_drum_synth"
	SourceDrumSample SourceCategory = "sequencer_drum_sample"
)

func ParseSourceCategory(s string) SourceCategory {
	switch c := SourceCategory(s); c {
	case SourceKey, SourceSequencer, SourceDrumSynth, SourceDrumSample:
		return c
	}
	return SourceKey
}

// Sequenced reports whether the category belongs to the step sequencer.
func (s SourceCategory) Sequenced() bool {
	return s == SourceSequencer || s == SourceDrumSynth || s == SourceDrumSample
}
