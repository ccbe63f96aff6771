package midi

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"
)

type rawEvent struct {
	tick uint32
	data []byte
}

// walkTracks decodes the MTrk chunks of a file into absolute-tick events,
// expanding running status.
func walkTracks(t *testing.T, file []byte) [][]rawEvent {
	t.Helper()
	require.Equal(t, []byte("MThd"), file[:4])
	pos := 8 + int(binary.BigEndian.Uint32(file[4:8]))

	var tracks [][]rawEvent
	for pos < len(file) {
		require.Equal(t, []byte("MTrk"), file[pos:pos+4])
		n := int(binary.BigEndian.Uint32(file[pos+4 : pos+8]))
		chunk := file[pos+8 : pos+8+n]
		pos += 8 + n

		var events []rawEvent
		var tick uint32
		var status byte
		i := 0
		vlq := func() uint32 {
			var v uint32
			for {
				b := chunk[i]
				i++
				v = v<<7 | uint32(b&0x7f)
				if b&0x80 == 0 {
					return v
				}
			}
		}
		for i < len(chunk) {
			tick += vlq()
			start := i
			if chunk[i] >= 0x80 {
				status = chunk[i]
				i++
			}
			var data []byte
			switch {
			case status == 0xff:
				i++ // meta type
				l := int(vlq())
				i += l
				data = append([]byte{}, chunk[start:i]...)
			case status == 0xf0 || status == 0xf7:
				l := int(vlq())
				i += l
				data = append([]byte{}, chunk[start:i]...)
			default:
				size := 2
				if status>>4 == 0xc || status>>4 == 0xd {
					size = 1
				}
				data = append([]byte{status}, chunk[i:i+size]...)
				i += size
			}
			events = append(events, rawEvent{tick: tick, data: data})
		}
		tracks = append(tracks, events)
	}
	return tracks
}

func render(t *testing.T, p Pattern) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteExport(&buf, p))
	return buf.Bytes()
}

func emptyRows(rows, steps int) [][]bool {
	res := make([][]bool, rows)
	for i := range res {
		res[i] = make([]bool, steps)
	}
	return res
}

func TestExportSingleKick(t *testing.T) {
	drums := emptyRows(3, 16)
	drums[0][0] = true
	file := render(t, Pattern{Tempo: 120, Steps: 16, Drums: drums})

	assert := assert.New(t)
	assert.Equal([]byte{0, 0, 0, 6, 0, 1, 0, 1, 0, 128}, file[4:14])

	tracks := walkTracks(t, file)
	require.Len(t, tracks, 1)
	assert.Equal([]rawEvent{
		{0, append([]byte{0xff, 0x03, 5}, "Drums"...)},
		{0, []byte{0xff, 0x51, 0x03, 0x07, 0xa1, 0x20}},
		{0, []byte{0x99, 36, 100}},
		{32, []byte{0x89, 36, 0}},
		{512, []byte{0xff, 0x2f, 0x00}},
	}, tracks[0])
}

func TestExportMelodicRowWithBend(t *testing.T) {
	quarterTone := 440 * math.Exp2(0.25/12)
	rows := []MelodicRow{
		{Frequency: 330, Cells: make([]bool, 8)},
		{Frequency: quarterTone, Cells: []bool{true, true, false, false, false, false, false, false}},
		{Frequency: 0, Cells: []bool{true, false, false, false, false, false, false, false}},
	}
	file := render(t, Pattern{Tempo: 100, Steps: 8, Drums: emptyRows(3, 8), Melodic: rows})

	tracks := walkTracks(t, file)
	require.Len(t, tracks, 1)
	events := tracks[0]
	require.Len(t, events, 12)

	assert := assert.New(t)
	assert.Equal(append([]byte{0xff, 0x03, 8}, "Melody 2"...), events[0].data)
	// 60e6 / 100 = 600000 = 0x0927c0
	assert.Equal([]byte{0xff, 0x51, 0x03, 0x09, 0x27, 0xc0}, events[1].data)
	assert.Equal([]byte{0xb1, 101, 0}, events[2].data)
	assert.Equal([]byte{0xb1, 100, 0}, events[3].data)
	assert.Equal([]byte{0xb1, 6, 2}, events[4].data)
	assert.Equal([]byte{0xb1, 38, 0}, events[5].data)

	// bend 8192 + 0.125*8191 = 9216 -> lsb 0, msb 72
	assert.Equal(rawEvent{0, []byte{0xe1, 0x00, 0x48}}, events[6])
	assert.Equal(rawEvent{0, []byte{0x91, 69, 100}}, events[7])
	assert.Equal(rawEvent{32, []byte{0x81, 69, 0}}, events[8])
	assert.Equal(rawEvent{32, []byte{0x91, 69, 100}}, events[9])
	assert.Equal(rawEvent{64, []byte{0x81, 69, 0}}, events[10])
	assert.Equal(uint32(256), events[11].tick)
	assert.Equal([]byte{0xff, 0x2f, 0x00}, events[11].data)
}

func TestExportTempoOnlyInFirstTrack(t *testing.T) {
	drums := emptyRows(3, 4)
	drums[2][1] = true
	melodic := []MelodicRow{{Frequency: 440, Cells: []bool{true, false, false, false}}}
	file := render(t, Pattern{Tempo: 120, Steps: 4, Drums: drums, Melodic: melodic})

	tracks := walkTracks(t, file)
	require.Len(t, tracks, 2)
	tempos := 0
	for _, tr := range tracks {
		for _, ev := range tr {
			if len(ev.data) > 1 && ev.data[0] == 0xff && ev.data[1] == 0x51 {
				tempos++
			}
		}
	}
	assert.Equal(t, 1, tempos)
	assert.Equal(t, []byte{0x99, 42, 100}, tracks[0][2].data)
	assert.Equal(t, uint32(32), tracks[0][2].tick)
}

func TestExportEmptyGrid(t *testing.T) {
	_, err := Export(Pattern{Tempo: 120, Steps: 16, Drums: emptyRows(3, 16)})
	assert.True(t, errors.Is(err, ErrNothingToExport))

	err = WriteExport(&bytes.Buffer{}, Pattern{Tempo: 120, Steps: 4, Melodic: []MelodicRow{{Cells: []bool{true}}}})
	assert.True(t, errors.Is(err, ErrNothingToExport))
}

func TestMelodicChannelSkipsDrums(t *testing.T) {
	for row, want := range map[int]uint8{0: 0, 8: 8, 9: 10, 13: 14, 14: 15} {
		ch, ok := MelodicChannel(row)
		assert.True(t, ok)
		assert.Equal(t, want, ch, "row %d", row)
	}
	_, ok := MelodicChannel(15)
	assert.False(t, ok)
}

func TestExportReadsBack(t *testing.T) {
	drums := emptyRows(3, 16)
	drums[1][4] = true
	file := render(t, Pattern{Tempo: 90, Steps: 16, Drums: drums})

	s, err := ReadMidi(bytes.NewReader(file))
	require.NoError(t, err)
	assert.Len(t, s.Tracks, 1)
	assert.Equal(t, smf.MetricTicks(TicksPerBeat), s.TimeFormat)

	var notes []TimedEvent
	for _, ev := range Events(s) {
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) {
			notes = append(notes, ev)
			assert.Equal(t, uint8(38), key)
			assert.Equal(t, uint8(9), ch)
		}
	}
	require.Len(t, notes, 1)
	assert.Equal(t, int64(128), notes[0].Tick)
}

func TestReadMidiRejectsGarbage(t *testing.T) {
	_, err := ReadMidi(bytes.NewReader([]byte("not a midi file")))
	assert.Error(t, err)
}
