// Package midi connects the voice engine to MIDI: it routes incoming
// messages to voices, announces key voices on an output port and writes the
// sequencer grid as a Standard MIDI File.
package midi

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ReadMidiFile parses a Standard MIDI File from disk.
func ReadMidiFile(filepath string) (*smf.SMF, error) {
	dat, err := os.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrap(err, "reading midi file")
	}
	return ReadMidi(bytes.NewReader(dat))
}

// ReadMidi parses a Standard MIDI File. The smf reader can panic on
// malformed input; that is returned as an error.
func ReadMidi(r io.Reader) (s *smf.SMF, e error) {
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if rec := recover(); rec != nil {
			s = nil
			e = errors.Errorf("parsing midi file: %v", rec)
		}
	}()

	res, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing midi file")
	}
	return res, nil
}

// TimedEvent is a track event at its absolute tick.
type TimedEvent struct {
	Track   int
	Tick    int64
	Message smf.Message
}

// Events flattens every track of s into absolute ticks, track by track.
func Events(s *smf.SMF) []TimedEvent {
	var res []TimedEvent
	for i, track := range s.Tracks {
		var abs int64
		for _, ev := range track {
			abs += int64(ev.Delta)
			res = append(res, TimedEvent{Track: i, Tick: abs, Message: ev.Message})
		}
	}
	return res
}

func (e TimedEvent) String() string {
	return fmt.Sprintf("track %d tick %d %v", e.Track, e.Tick, e.Message)
}
