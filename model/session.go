package model

import "github.com/pkg/errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidName     = errors.New("invalid session name")
)

// EncodedBuffer is a decoded sample with each channel stored as base64 of its
// little-endian float32 samples.
type EncodedBuffer struct {
	SampleRate       float64  `json:"sampleRate"`
	Length           int      `json:"length"`
	NumberOfChannels int      `json:"numberOfChannels"`
	Channels         []string `json:"channels"`
}

// Key is one keyboard slot. MidiNote is -1 when no incoming note maps to it.
type Key struct {
	Ratio    float64 `json:"ratio"`
	MidiNote int     `json:"midiNote"`
}

type KeyboardState struct {
	BaseFrequency float64 `json:"baseFrequency"`
	OctaveShift   int     `json:"octaveShift"`
	PitchShift    float64 `json:"pitchShift"`
	// Keys may contain nil entries for empty slots.
	Keys []*Key `json:"keys"`
}

type Session struct {
	Name          string                    `json:"name"`
	Tempo         int                       `json:"tempo"`
	Steps         int                       `json:"steps"`
	Grid          [][]bool                  `json:"grid"`
	RowKeys       []int                     `json:"rowKeys"`
	Chords        []ChordDefinition         `json:"chords"`
	Keyboard      KeyboardState             `json:"keyboard"`
	SoundTypeKeys string                    `json:"soundTypeKeys"`
	SoundTypeSeq  string                    `json:"soundTypeSeq"`
	DrumSamples   map[string]*EncodedBuffer `json:"drumSamples,omitempty"`
}
