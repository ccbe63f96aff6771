package sequencer

import (
	"strings"

	"github.com/jsphweid/keystation/sound"
	"github.com/pkg/errors"
)

// Drum is one of the fixed drum rows at the top of the grid.
type Drum int

const (
	Kick Drum = iota
	Snare
	HiHat

	DrumRows = 3
)

var ErrUnknownDrum = errors.New("unknown drum")

var drumNames = [DrumRows]string{"Kick", "Snare", "Hi-Hat"}

func (d Drum) String() string {
	if d < 0 || d >= DrumRows {
		return "Drum(?)"
	}
	return drumNames[d]
}

// ParseDrum accepts the display name, case-insensitively.
func ParseDrum(s string) (Drum, error) {
	for i, n := range drumNames {
		if strings.EqualFold(n, s) {
			return Drum(i), nil
		}
	}
	return 0, errors.Wrap(ErrUnknownDrum, s)
}

// FallbackType is the synthesized sound played while no sample is loaded.
func (d Drum) FallbackType() sound.Type {
	switch d {
	case Snare:
		return sound.SynthSnare
	case HiHat:
		return sound.HiHatNoise
	}
	return sound.KickDrum
}

func (d Drum) FallbackFrequency() float64 {
	switch d {
	case Kick:
		return 60
	case Snare:
		return 200
	case HiHat:
		return 8000
	}
	return 100
}

// SampleFile is the file name looked up in the drum sample directory.
func (d Drum) SampleFile() string {
	switch d {
	case Snare:
		return "snare.wav"
	case HiHat:
		return "hihat.wav"
	}
	return "kick.wav"
}

func Drums() []Drum {
	return []Drum{Kick, Snare, HiHat}
}
