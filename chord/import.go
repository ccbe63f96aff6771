package chord

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jsphweid/keystation/model"
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2/smf"
)

var ErrNoChordsFound = errors.New("no chords found")

type reducedEvent struct {
	tick      int64
	isNoteOff bool
	note      uint8
}

// NoteKey is a stable name for a set of notes, e.g. "60-64-67".
func NoteKey(notes []uint8) string {
	sorted := append([]uint8(nil), notes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	parts := make([]string, len(sorted))
	for i, note := range sorted {
		parts[i] = fmt.Sprintf("%v", note)
	}
	return strings.Join(parts, "-")
}

// FromMidi collects the distinct sets of simultaneously held notes in s, in
// the order they first sound. Sets larger than MaxNotes keep their lowest
// notes.
func FromMidi(s *smf.SMF) (res [][]uint8, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("reading chords: %v", rec)
		}
	}()

	var events []reducedEvent
	for _, track := range s.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			var ch, key, vel uint8
			switch {
			case ev.Message.GetNoteStart(&ch, &key, &vel):
				events = append(events, reducedEvent{tick: tick, note: key})
			case ev.Message.GetNoteEnd(&ch, &key):
				events = append(events, reducedEvent{tick: tick, isNoteOff: true, note: key})
			}
		}
	}

	// earlier ticks first, note offs before note ons on the same tick
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].isNoteOff && !events[j].isNoteOff
	})

	pressed := make(map[uint8]bool)
	seen := make(map[string]bool)
	flush := func() {
		if len(pressed) == 0 {
			return
		}
		notes := make([]uint8, 0, len(pressed))
		for n := range pressed {
			notes = append(notes, n)
		}
		sort.Slice(notes, func(i, j int) bool { return notes[i] < notes[j] })
		if len(notes) > MaxNotes {
			notes = notes[:MaxNotes]
		}
		k := NoteKey(notes)
		if !seen[k] {
			seen[k] = true
			res = append(res, notes)
		}
	}
	for i, evt := range events {
		if evt.isNoteOff {
			delete(pressed, evt.note)
		} else {
			pressed[evt.note] = true
		}
		if i == len(events)-1 || events[i+1].tick != evt.tick {
			flush()
		}
	}
	if len(res) == 0 {
		return nil, ErrNoChordsFound
	}
	return res, nil
}

// Import replaces the definitions with up to MaxChords note sets taken from
// a MIDI file. Notes are mapped to keys through their MIDI assignment, and
// notes no key answers to are left unassigned.
func (c *Chords) Import(s *smf.SMF) (int, error) {
	sets, err := FromMidi(s)
	if err != nil {
		return 0, err
	}
	if len(sets) > MaxChords {
		sets = sets[:MaxChords]
	}
	defs := make([]model.ChordDefinition, len(sets))
	for i, notes := range sets {
		defs[i] = model.ChordDefinition{Name: NoteKey(notes), Notes: make([]*model.ChordNote, len(notes))}
		for j, n := range notes {
			if idx := c.keys.KeyForNote(n); idx >= 0 {
				defs[i].Notes[j] = &model.ChordNote{KeyIndex: idx}
			}
		}
	}
	if err := c.Load(defs); err != nil {
		return 0, err
	}
	return len(defs), nil
}
