package sound

import (
	"strings"

	"github.com/pkg/errors"
)

// Type is one entry of the fixed sound catalog.
type Type int

const (
	Sine Type = iota
	PianoWav
	PluckTriangle
	PluckSaw
	WarmSaw
	Bell
	SoftPad
	Xylophone
	LeadSquare
	Organ
	KickDrum
	HiHatNoise
	SynthSnare
	Synth
	numTypes
)

var typeNames = [numTypes]string{
	Sine:          "sine",
	PianoWav:      "piano_wav",
	PluckTriangle: "pluck_triangle",
	PluckSaw:      "pluck_saw",
	WarmSaw:       "warm_saw",
	Bell:          "bell",
	SoftPad:       "soft_pad",
	Xylophone:     "xylophone",
	LeadSquare:    "lead_square",
	Organ:         "organ",
	KickDrum:      "kick_drum",
	HiHatNoise:    "hi_hat_noise",
	SynthSnare:    "synth_snare",
	Synth:         "synth",
}

var ErrUnknownType = errors.New("unknown sound type")

func (t Type) String() string {
	if t < 0 || t >= numTypes {
		return "unknown"
	}
	return typeNames[t]
}

func Parse(s string) (Type, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return Sine, errors.Wrapf(ErrUnknownType, "%q", s)
}

func All() []Type {
	res := make([]Type, 0, numTypes)
	for t := Type(0); t < numTypes; t++ {
		res = append(res, t)
	}
	return res
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Percussive types are cut with a 10ms fade when stopped early.
func (t Type) Percussive() bool {
	switch t {
	case PluckTriangle, KickDrum, HiHatNoise, Bell, Xylophone, SynthSnare, PianoWav:
		return true
	}
	return false
}

// ReleaseTail is the exponential release length of types that keep ringing
// after note off.
func (t Type) ReleaseTail() (float64, bool) {
	switch t {
	case PluckSaw:
		return 0.5, true
	case Synth:
		return 0.3, true
	case SoftPad:
		return 0.8, true
	}
	return 0, false
}

// SustainLevel is the gain a held note is assumed to sit at when its
// automation has already decayed below audibility.
func (t Type) SustainLevel() float64 {
	switch t {
	case WarmSaw:
		return 0.4
	case Organ:
		return 0.2
	}
	return 0.3
}

// DrumVoice reports whether the type is used to synthesize a missing drum
// sample.
func (t Type) DrumVoice() bool {
	switch t {
	case PluckSaw, KickDrum, HiHatNoise, SynthSnare:
		return true
	}
	return false
}
