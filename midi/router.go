package midi

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/pitch"
	"github.com/jsphweid/keystation/voice"
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
)

// ModTarget is what the mod wheel (CC 1) controls.
type ModTarget string

const (
	ModNone    ModTarget = "none"
	ModKeysVol ModTarget = "keys_vol"
	ModSeqVol  ModTarget = "seq_vol"
	ModTempo   ModTarget = "tempo"
	ModPitch   ModTarget = "pitch"

	modWheel = 1

	DefaultTempoMin = 30
	DefaultTempoMax = 280
	DefaultPitchMin = -2.0
	DefaultPitchMax = 2.0
)

var ErrUnknownModTarget = errors.New("unknown mod wheel target")

func ParseModTarget(s string) (ModTarget, error) {
	switch t := ModTarget(s); t {
	case ModNone, ModKeysVol, ModSeqVol, ModTempo, ModPitch:
		return t, nil
	case "":
		return ModNone, nil
	}
	return ModNone, errors.Wrap(ErrUnknownModTarget, s)
}

// KeyID is the voice id of a keyboard key.
func KeyID(index int) string {
	return fmt.Sprintf("keyboard_key_%d", index)
}

// Voices is the voice controller as seen by the router.
type Voices interface {
	Start(freq model.FrequencyPair, id string, src model.SourceCategory, opts ...voice.StartOption) *voice.Voice
	Stop(id string, release float64)
	RetunePitch(semitones float64)
	SetVolume(b voice.Bus, level float64)
}

// Keys resolves incoming notes to keyboard keys.
type Keys interface {
	KeyForNote(note uint8) int
	Frequency(i, octaveOffset int) (model.FrequencyPair, bool)
	SetPitchShift(semitones float64)
}

type Tempo interface {
	SetTempo(bpm int) int
}

type Router struct {
	mu     sync.Mutex
	voices Voices
	keys   Keys
	tempo  Tempo
	logger *slog.Logger

	target             ModTarget
	tempoMin, tempoMax float64
	pitchMin, pitchMax float64
	held               map[int]bool
	deferTempo         func(func())
}

type RouterOption func(*Router)

func WithTempo(t Tempo) RouterOption {
	return func(r *Router) {
		r.tempo = t
	}
}

func WithModTarget(t ModTarget) RouterOption {
	return func(r *Router) {
		r.target = t
	}
}

// WithTempoRange sets the tempo the mod wheel spans from 0 to 127.
func WithTempoRange(lo, hi float64) RouterOption {
	return func(r *Router) {
		r.tempoMin, r.tempoMax = lo, hi
	}
}

func WithPitchRange(lo, hi float64) RouterOption {
	return func(r *Router) {
		r.pitchMin, r.pitchMax = lo, hi
	}
}

// WithTempoDebounce sets how long the wheel must rest before a tempo change
// restarts the timer loops.
func WithTempoDebounce(d time.Duration) RouterOption {
	return func(r *Router) {
		r.deferTempo = debounce.New(d)
	}
}

func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = l
	}
}

func NewRouter(voices Voices, keys Keys, opts ...RouterOption) *Router {
	r := &Router{
		voices:     voices,
		keys:       keys,
		logger:     slog.Default(),
		target:     ModNone,
		tempoMin:   DefaultTempoMin,
		tempoMax:   DefaultTempoMax,
		pitchMin:   DefaultPitchMin,
		pitchMax:   DefaultPitchMax,
		held:       make(map[int]bool),
		deferTempo: debounce.New(50 * time.Millisecond),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) SetModTarget(t ModTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = t
}

func (r *Router) ModTarget() ModTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// HandleBytes routes a raw 3-byte channel message.
func (r *Router) HandleBytes(data []byte) {
	r.Handle(midi.Message(data))
}

// Handle routes one incoming message. Notes reach only keys mapped to them;
// unmapped notes and unsupported messages are ignored.
func (r *Router) Handle(msg midi.Message) {
	var ch, key, vel, cc, val uint8
	var rel int16
	var abs uint16

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		r.noteOn(key)
	case msg.GetNoteEnd(&ch, &key):
		r.noteOff(key)
	case msg.GetPitchBend(&ch, &rel, &abs):
		r.setPitch(pitch.FromBendInput(abs))
	case msg.GetControlChange(&ch, &cc, &val):
		if cc == modWheel {
			r.modWheel(val)
		}
	}
}

func (r *Router) noteOn(note uint8) {
	idx := r.keys.KeyForNote(note)
	if idx < 0 {
		return
	}
	r.mu.Lock()
	if r.held[idx] {
		r.mu.Unlock()
		return
	}
	r.held[idx] = true
	r.mu.Unlock()

	freq, ok := r.keys.Frequency(idx, 0)
	if !ok {
		return
	}
	r.voices.Start(freq, KeyID(idx), model.SourceKey, voice.WithKeyIndex(idx))
}

func (r *Router) noteOff(note uint8) {
	idx := r.keys.KeyForNote(note)
	if idx < 0 {
		return
	}
	r.mu.Lock()
	if !r.held[idx] {
		r.mu.Unlock()
		return
	}
	delete(r.held, idx)
	r.mu.Unlock()

	r.voices.Stop(KeyID(idx), voice.DefaultRelease)
}

func (r *Router) setPitch(semitones float64) {
	r.keys.SetPitchShift(semitones)
	r.voices.RetunePitch(semitones)
}

func (r *Router) modWheel(value uint8) {
	n := float64(value) / 127
	r.mu.Lock()
	target := r.target
	tempoMin, tempoMax := r.tempoMin, r.tempoMax
	pitchMin, pitchMax := r.pitchMin, r.pitchMax
	r.mu.Unlock()

	switch target {
	case ModKeysVol:
		r.voices.SetVolume(voice.KeysBus, n)
	case ModSeqVol:
		r.voices.SetVolume(voice.SequencerBus, n)
	case ModTempo:
		if r.tempo == nil {
			return
		}
		bpm := int(math.Round(tempoMin + n*(tempoMax-tempoMin)))
		r.deferTempo(func() {
			kept := r.tempo.SetTempo(bpm)
			r.logger.Debug("tempo from mod wheel", "bpm", kept)
		})
	case ModPitch:
		r.setPitch(pitchMin + n*(pitchMax-pitchMin))
	}
}

// Held reports whether the key is sounding because of a MIDI note.
func (r *Router) Held(index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[index]
}

// Release forgets every held note, used after a mute.
func (r *Router) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.held = make(map[int]bool)
}
