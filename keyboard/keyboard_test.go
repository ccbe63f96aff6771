package keyboard

import (
	"testing"

	"github.com/jsphweid/keystation/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyAppliesOctavesAndShift(t *testing.T) {
	kb := New(220, []*model.Key{{Ratio: 1, MidiNote: 57}, {Ratio: 1.5, MidiNote: 64}})

	f, ok := kb.Frequency(1, 0)
	require.True(t, ok)
	assert.InDelta(t, 330.0, f.Final, 1e-9)
	assert.InDelta(t, 330.0, f.Base, 1e-9)

	kb.SetOctaveShift(1)
	kb.SetPitchShift(12)
	f, ok = kb.Frequency(0, -2)
	require.True(t, ok)
	assert.InDelta(t, 110.0, f.Base, 1e-9)
	assert.InDelta(t, 220.0, f.Final, 1e-9)
}

func TestFrequencyOfEmptySlot(t *testing.T) {
	kb := New(220, []*model.Key{nil, {Ratio: 1}})
	_, ok := kb.Frequency(0, 0)
	assert.False(t, ok)
	_, ok = kb.Frequency(5, 0)
	assert.False(t, ok)
}

func TestValidFromWraps(t *testing.T) {
	kb := New(220, []*model.Key{nil, {Ratio: 1}, nil, {Ratio: 2}, nil})
	assert.Equal(t, 1, kb.FirstValid())
	assert.Equal(t, 3, kb.ValidFrom(2))
	assert.Equal(t, 1, kb.ValidFrom(4))
	assert.Equal(t, -1, New(220, []*model.Key{nil}).FirstValid())
	assert.Equal(t, -1, New(220, nil).ValidFrom(3))
}

func TestAssignNoteKeepsMappingUnique(t *testing.T) {
	kb := Default()
	assert.Equal(t, 9, kb.KeyForNote(69))

	require.NoError(t, kb.AssignNote(0, 69))
	assert.Equal(t, 0, kb.KeyForNote(69))
	assert.Equal(t, -1, kb.State().Keys[9].MidiNote)

	require.NoError(t, kb.AssignNote(0, -1))
	assert.Equal(t, -1, kb.KeyForNote(69))

	err := kb.AssignNote(99, 60)
	assert.True(t, errors.Is(err, ErrNoSuchKey))
}

func TestSetKeyGrowsAndMaps(t *testing.T) {
	kb := New(100, nil)
	require.NoError(t, kb.SetKey(2, &model.Key{Ratio: 2, MidiNote: 40}))
	assert.Equal(t, 3, kb.Len())
	assert.Equal(t, 2, kb.KeyForNote(40))
	assert.False(t, kb.Valid(0))

	require.NoError(t, kb.SetKey(2, nil))
	assert.Equal(t, -1, kb.KeyForNote(40))
}

func TestOctaveShiftIsClamped(t *testing.T) {
	kb := Default()
	assert.Equal(t, MaxOctaveShift, kb.SetOctaveShift(9))
	assert.Equal(t, MinOctaveShift, kb.SetOctaveShift(-9))
}

func TestStateRoundTripCopiesKeys(t *testing.T) {
	kb := Default()
	kb.SetPitchShift(1.5)
	kb.SetOctaveShift(-1)
	state := kb.State()

	restored := FromState(state)
	state.Keys[0].Ratio = 99

	f, ok := restored.Frequency(0, 0)
	require.True(t, ok)
	assert.InDelta(t, DefaultBaseFrequency/2, f.Base, 1e-9)
	assert.Equal(t, 1.5, restored.PitchShift())
}

func TestRestoreReplacesInPlace(t *testing.T) {
	kb := Default()
	held := kb

	kb.Restore(model.KeyboardState{
		BaseFrequency: 440,
		OctaveShift:   9,
		Keys:          []*model.Key{nil, {Ratio: 1.5, MidiNote: 70}},
	})
	assert.Equal(t, 2, held.Len())
	assert.Equal(t, MaxOctaveShift, held.OctaveShift())
	assert.Equal(t, 1, held.KeyForNote(70))
	assert.Equal(t, -1, held.KeyForNote(60))

	kb.Restore(model.KeyboardState{})
	assert.Equal(t, 440.0, kb.BaseFrequency())
	assert.Equal(t, -1, kb.FirstValid())
}
