package midi

import (
	"fmt"
	"io"
	"sort"

	"github.com/jsphweid/keystation/pitch"
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	TicksPerBeat = 128
	// TicksPerStep makes one sequencer step a sixteenth note.
	TicksPerStep = TicksPerBeat / 4

	DrumChannel  = 9
	exportVolume = 100
)

// DrumNotes are the General MIDI notes of the Kick, Snare and Hi-Hat rows.
var DrumNotes = []uint8{36, 38, 42}

// ErrNothingToExport is returned for a grid without a single active cell.
var ErrNothingToExport = errors.New("no notes in sequencer to export")

// Pattern is a sequencer grid prepared for export.
type Pattern struct {
	Tempo int
	Steps int
	// Drums holds one row per entry of DrumNotes.
	Drums   [][]bool
	Melodic []MelodicRow
}

type MelodicRow struct {
	// Frequency is the unshifted frequency of the row's key, 0 when the row
	// has no key.
	Frequency float64
	Cells     []bool
}

// MelodicChannel maps a melodic row to its channel, skipping the drum
// channel. Rows past the last channel are not exported.
func MelodicChannel(row int) (uint8, bool) {
	switch {
	case row < 0:
		return 0, false
	case row < DrumChannel:
		return uint8(row), true
	case row < 15:
		return uint8(row + 1), true
	}
	return 0, false
}

// event kinds in the order they are written when sharing a tick.
const (
	kindOff = iota
	kindBend
	kindOn
)

type timed struct {
	tick uint32
	kind int
	msg  midi.Message
}

// buildTrack sorts events by tick and kind, then closes the track at end.
func buildTrack(head []smf.Message, events []timed, end uint32) smf.Track {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].kind < events[j].kind
	})
	var tr smf.Track
	for _, m := range head {
		tr.Add(0, m)
	}
	var at uint32
	for _, e := range events {
		tr.Add(e.tick-at, e.msg)
		at = e.tick
	}
	var rest uint32
	if end > at {
		rest = end - at
	}
	tr.Close(rest)
	return tr
}

func active(cells []bool, steps int) bool {
	for s := 0; s < steps && s < len(cells); s++ {
		if cells[s] {
			return true
		}
	}
	return false
}

// Export builds a format 1 file with one drum track and one track per
// melodic row that has notes. The tempo goes in the first track only.
func Export(p Pattern) (*smf.SMF, error) {
	if p.Steps <= 0 || p.Tempo <= 0 {
		return nil, ErrNothingToExport
	}
	end := uint32(p.Steps * TicksPerStep)
	tempo := smf.MetaTempo(float64(p.Tempo))

	var tracks []smf.Track
	withTempo := func(head ...smf.Message) []smf.Message {
		if len(tracks) == 0 {
			head = append(head, tempo)
		}
		return head
	}

	var drums []timed
	for row, cells := range p.Drums {
		if row >= len(DrumNotes) {
			break
		}
		note := DrumNotes[row]
		for s := 0; s < p.Steps && s < len(cells); s++ {
			if !cells[s] {
				continue
			}
			start := uint32(s * TicksPerStep)
			drums = append(drums,
				timed{tick: start, kind: kindOn, msg: midi.NoteOn(DrumChannel, note, exportVolume)},
				timed{tick: start + TicksPerStep, kind: kindOff, msg: midi.NoteOff(DrumChannel, note)},
			)
		}
	}
	if len(drums) > 0 {
		tracks = append(tracks, buildTrack(withTempo(smf.MetaTrackSequenceName("Drums")), drums, end))
	}

	for row, r := range p.Melodic {
		if r.Frequency <= 0 || !active(r.Cells, p.Steps) {
			continue
		}
		ch, ok := MelodicChannel(row)
		if !ok {
			continue
		}
		head := withTempo(smf.MetaTrackSequenceName(fmt.Sprintf("Melody %d", row+1)))
		head = append(head, bendRange(ch)...)

		note, bend := pitch.FromFrequency(r.Frequency)
		last := uint16(pitch.BendCenter)
		var events []timed
		for s := 0; s < p.Steps && s < len(r.Cells); s++ {
			if !r.Cells[s] {
				continue
			}
			start := uint32(s * TicksPerStep)
			if bend != last {
				events = append(events, timed{tick: start, kind: kindBend, msg: midi.Pitchbend(ch, pitch.Relative(bend))})
				last = bend
			}
			events = append(events,
				timed{tick: start, kind: kindOn, msg: midi.NoteOn(ch, note, exportVolume)},
				timed{tick: start + TicksPerStep, kind: kindOff, msg: midi.NoteOff(ch, note)},
			)
		}
		tracks = append(tracks, buildTrack(head, events, end))
	}

	if len(tracks) == 0 {
		return nil, ErrNothingToExport
	}
	// format 1 even when only one track has content
	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(TicksPerBeat)
	for i, tr := range tracks {
		if err := s.Add(tr); err != nil {
			return nil, errors.Wrapf(err, "adding track %d", i)
		}
	}
	return s, nil
}

// bendRange sets the pitch bend sensitivity of ch to pitch.BendRange
// semitones through RPN 0.
func bendRange(ch uint8) []smf.Message {
	return []smf.Message{
		smf.Message(midi.ControlChange(ch, 101, 0)),
		smf.Message(midi.ControlChange(ch, 100, 0)),
		smf.Message(midi.ControlChange(ch, 6, pitch.BendRange)),
		smf.Message(midi.ControlChange(ch, 38, 0)),
	}
}

// WriteExport writes the pattern as a Standard MIDI File.
func WriteExport(w io.Writer, p Pattern) error {
	s, err := Export(p)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing midi file")
	}
	return nil
}
