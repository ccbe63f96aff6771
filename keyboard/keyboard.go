// Package keyboard holds the playable key layout: one slot per key with a
// frequency ratio against the base frequency and an optional incoming MIDI
// note. Empty slots are allowed and are skipped by every trigger source.
package keyboard

import (
	"math"
	"sync"

	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/util"
	"github.com/pkg/errors"
)

const (
	// DefaultBaseFrequency is middle C.
	DefaultBaseFrequency = 261.63
	DefaultKeyCount      = 25
	firstMidiNote        = 60

	MinOctaveShift = -3
	MaxOctaveShift = 3
)

var ErrNoSuchKey = errors.New("no such key")

type Keyboard struct {
	mu     sync.RWMutex
	base   float64
	octave int
	shift  float64
	keys   []*model.Key
}

func New(base float64, keys []*model.Key) *Keyboard {
	if base <= 0 {
		base = DefaultBaseFrequency
	}
	return &Keyboard{base: base, keys: keys}
}

// Default lays out two equal tempered octaves from middle C, mapped to MIDI
// notes 60 to 84.
func Default() *Keyboard {
	keys := make([]*model.Key, DefaultKeyCount)
	for i := range keys {
		keys[i] = &model.Key{Ratio: math.Exp2(float64(i) / 12), MidiNote: firstMidiNote + i}
	}
	return New(DefaultBaseFrequency, keys)
}

func FromState(s model.KeyboardState) *Keyboard {
	kb := New(s.BaseFrequency, nil)
	kb.Restore(s)
	return kb
}

// Restore replaces the whole layout in place, so holders of the keyboard see
// the loaded state.
func (k *Keyboard) Restore(s model.KeyboardState) {
	keys := make([]*model.Key, len(s.Keys))
	for i, key := range s.Keys {
		if key != nil {
			cp := *key
			keys[i] = &cp
		}
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if s.BaseFrequency > 0 {
		k.base = s.BaseFrequency
	}
	k.keys = keys
	k.octave = util.Clamp(s.OctaveShift, MinOctaveShift, MaxOctaveShift)
	k.shift = s.PitchShift
}

func (k *Keyboard) State() model.KeyboardState {
	k.mu.RLock()
	defer k.mu.RUnlock()
	keys := make([]*model.Key, len(k.keys))
	for i, key := range k.keys {
		if key != nil {
			cp := *key
			keys[i] = &cp
		}
	}
	return model.KeyboardState{
		BaseFrequency: k.base,
		OctaveShift:   k.octave,
		PitchShift:    k.shift,
		Keys:          keys,
	}
}

func (k *Keyboard) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

func (k *Keyboard) Valid(i int) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.valid(i)
}

func (k *Keyboard) valid(i int) bool {
	return i >= 0 && i < len(k.keys) && k.keys[i] != nil
}

// FirstValid returns the lowest occupied slot, or -1 on an empty keyboard.
func (k *Keyboard) FirstValid() int {
	return k.ValidFrom(0)
}

// ValidFrom returns the first occupied slot at or after i, wrapping around
// to the start of the keyboard, or -1 if every slot is empty.
func (k *Keyboard) ValidFrom(i int) int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	n := len(k.keys)
	if n == 0 {
		return -1
	}
	if i < 0 {
		i = 0
	}
	for j := 0; j < n; j++ {
		idx := (i + j) % n
		if k.keys[idx] != nil {
			return idx
		}
	}
	return -1
}

// Frequency returns the pair for key i transposed by octaveOffset octaves on
// top of the keyboard octave shift. Base excludes the global pitch shift so
// that a later retune can be applied to it.
func (k *Keyboard) Frequency(i, octaveOffset int) (model.FrequencyPair, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if !k.valid(i) {
		return model.FrequencyPair{}, false
	}
	base := k.base * k.keys[i].Ratio * math.Exp2(float64(k.octave+octaveOffset))
	return model.FrequencyPair{
		Final: base * math.Exp2(k.shift/12),
		Base:  base,
	}, true
}

// KeyForNote returns the key mapped to an incoming MIDI note, or -1.
func (k *Keyboard) KeyForNote(note uint8) int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for i, key := range k.keys {
		if key != nil && key.MidiNote == int(note) {
			return i
		}
	}
	return -1
}

// AssignNote maps an incoming MIDI note to key i. A note maps to at most one
// key, so any other key holding it loses its mapping. A negative note clears
// the mapping of i.
func (k *Keyboard) AssignNote(i, note int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.valid(i) {
		return errors.Wrapf(ErrNoSuchKey, "key %d", i)
	}
	if note < 0 || note > 127 {
		k.keys[i].MidiNote = -1
		return nil
	}
	for j, key := range k.keys {
		if j != i && key != nil && key.MidiNote == note {
			key.MidiNote = -1
		}
	}
	k.keys[i].MidiNote = note
	return nil
}

// SetKey fills slot i, growing the keyboard when needed. A nil key empties
// the slot.
func (k *Keyboard) SetKey(i int, key *model.Key) error {
	if i < 0 {
		return errors.Wrapf(ErrNoSuchKey, "key %d", i)
	}
	k.mu.Lock()
	for i >= len(k.keys) {
		k.keys = append(k.keys, nil)
	}
	var note int = -1
	if key != nil {
		cp := *key
		note = cp.MidiNote
		cp.MidiNote = -1
		k.keys[i] = &cp
	} else {
		k.keys[i] = nil
	}
	k.mu.Unlock()

	if key != nil {
		return k.AssignNote(i, note)
	}
	return nil
}

func (k *Keyboard) OctaveShift() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.octave
}

// SetOctaveShift clamps n to the supported range and returns the value kept.
func (k *Keyboard) SetOctaveShift(n int) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.octave = util.Clamp(n, MinOctaveShift, MaxOctaveShift)
	return k.octave
}

func (k *Keyboard) PitchShift() float64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.shift
}

func (k *Keyboard) SetPitchShift(semitones float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.shift = semitones
}

func (k *Keyboard) BaseFrequency() float64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.base
}
