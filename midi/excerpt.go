package midi

import (
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Excerpt copies s starting at tick from, keeping at most maxNotes note
// events per track. Setup events before from (tempo, program changes, track
// names) are kept at tick 0 so the excerpt sounds like the original.
func Excerpt(s *smf.SMF, from int64, maxNotes int) *smf.SMF {
	res := smf.New()
	res.TimeFormat = s.TimeFormat

	for _, track := range s.Tracks {
		var out smf.Track
		var abs, last int64
		notes := 0
	Events:
		for _, ev := range track {
			abs += int64(ev.Delta)
			isNote := ev.Message.Is(midi.NoteOnMsg) || ev.Message.Is(midi.NoteOffMsg)
			at := abs - from
			switch {
			case at < 0 && isNote:
				continue
			case at < 0:
				at = 0
			case isNote:
				if notes >= maxNotes {
					break Events
				}
				notes++
			}
			out = append(out, smf.Event{Delta: uint32(at - last), Message: ev.Message})
			last = at
		}
		out.Close(0)
		res.Tracks = append(res.Tracks, out)
	}
	return res
}
