package midi

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jsphweid/keystation/graph"
	"github.com/jsphweid/keystation/keyboard"
	"github.com/jsphweid/keystation/schedule"
	"github.com/jsphweid/keystation/sound"
	"github.com/jsphweid/keystation/voice"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tempoRecorder struct {
	mu   sync.Mutex
	bpms []int
}

func (t *tempoRecorder) SetTempo(bpm int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bpms = append(t.bpms, bpm)
	return bpm
}

func (t *tempoRecorder) last() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.bpms...)
}

type wire struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (w *wire) send(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.sent = append(w.sent, append([]byte(nil), data...))
	return nil
}

func newEngine(opts ...voice.Option) (*voice.Controller, *keyboard.Keyboard) {
	ctx := graph.NewContext(1000)
	b := sound.NewBuilder(ctx, sound.NewPool(), sound.WithRand(rand.New(rand.NewSource(1))))
	opts = append([]voice.Option{voice.WithScheduler(schedule.NewManual())}, opts...)
	return voice.NewController(ctx, b, opts...), keyboard.Default()
}

func TestNotesStartAndStopMappedKeys(t *testing.T) {
	c, kb := newEngine()
	r := NewRouter(c, kb)

	r.HandleBytes([]byte{0x90, 69, 100})
	v, ok := c.Voice("keyboard_key_9")
	require.True(t, ok)
	assert.InDelta(t, 440.0, v.BaseFrequency, 0.01)
	assert.Equal(t, 9, v.KeyIndex)
	assert.True(t, r.Held(9))

	r.HandleBytes([]byte{0x90, 69, 90})
	again, _ := c.Voice("keyboard_key_9")
	assert.Same(t, v, again)

	r.HandleBytes([]byte{0x90, 69, 0})
	assert.False(t, c.Live("keyboard_key_9"))
	assert.False(t, r.Held(9))

	r.HandleBytes([]byte{0x90, 20, 100})
	r.HandleBytes([]byte{0x80, 20, 0})
	assert.False(t, c.AnyLive())
}

func TestNoteOffWithoutNoteOnIsIgnored(t *testing.T) {
	c, kb := newEngine()
	r := NewRouter(c, kb)
	r.HandleBytes([]byte{0x80, 60, 0})
	assert.False(t, c.Live("keyboard_key_0"))
}

func TestPitchBendRetunes(t *testing.T) {
	c, kb := newEngine()
	r := NewRouter(c, kb)

	r.HandleBytes([]byte{0xe0, 0x00, 0x60})
	assert.InDelta(t, 1.0, kb.PitchShift(), 1e-9)
	assert.InDelta(t, 1.0, c.PitchShift(), 1e-9)

	r.HandleBytes([]byte{0xe0, 0x00, 0x40})
	assert.InDelta(t, 0.0, c.PitchShift(), 1e-9)
}

func TestModWheelVolumes(t *testing.T) {
	c, kb := newEngine()
	r := NewRouter(c, kb, WithModTarget(ModSeqVol))

	r.HandleBytes([]byte{0xb0, 1, 127})
	assert.InDelta(t, 1.0, c.Bus(voice.SequencerBus).Gain.ValueAt(1), 1e-3)
	assert.InDelta(t, voice.DefaultVolume, c.Bus(voice.KeysBus).Gain.ValueAt(1), 1e-9)

	r.SetModTarget(ModKeysVol)
	r.HandleBytes([]byte{0xb0, 1, 0})
	assert.InDelta(t, 0.0, c.Bus(voice.KeysBus).Gain.ValueAt(1), 1e-3)

	r.HandleBytes([]byte{0xb0, 7, 127})
	assert.InDelta(t, 0.0, c.Bus(voice.KeysBus).Gain.ValueAt(1), 1e-3)
}

func TestModWheelPitch(t *testing.T) {
	c, kb := newEngine()
	r := NewRouter(c, kb, WithModTarget(ModPitch))

	r.HandleBytes([]byte{0xb0, 1, 0})
	assert.InDelta(t, -2.0, c.PitchShift(), 1e-9)
	r.HandleBytes([]byte{0xb0, 1, 127})
	assert.InDelta(t, 2.0, kb.PitchShift(), 1e-9)
}

func TestModWheelTempoIsDebounced(t *testing.T) {
	c, kb := newEngine()
	tempo := &tempoRecorder{}
	r := NewRouter(c, kb, WithModTarget(ModTempo), WithTempo(tempo), WithTempoDebounce(5*time.Millisecond))

	r.HandleBytes([]byte{0xb0, 1, 0})
	r.HandleBytes([]byte{0xb0, 1, 64})
	r.HandleBytes([]byte{0xb0, 1, 127})

	assert.Eventually(t, func() bool {
		return len(tempo.last()) > 0
	}, time.Second, time.Millisecond)
	assert.Equal(t, []int{280}, tempo.last())
}

func TestModWheelIgnoredWithoutTarget(t *testing.T) {
	c, kb := newEngine()
	r := NewRouter(c, kb)
	r.HandleBytes([]byte{0xb0, 1, 0})
	assert.InDelta(t, voice.DefaultVolume, c.Bus(voice.KeysBus).Gain.ValueAt(1), 1e-9)
	assert.Equal(t, 0.0, c.PitchShift())
}

func TestParseModTarget(t *testing.T) {
	target, err := ParseModTarget("seq_vol")
	require.NoError(t, err)
	assert.Equal(t, ModSeqVol, target)

	target, err = ParseModTarget("")
	require.NoError(t, err)
	assert.Equal(t, ModNone, target)

	_, err = ParseModTarget("filter")
	assert.True(t, errors.Is(err, ErrUnknownModTarget))
}

func TestSenderWritesBendThenNote(t *testing.T) {
	w := &wire{}
	s := NewSender(w.send)

	require.NoError(t, s.NoteOn(1, 69, 9216))
	require.NoError(t, s.NoteOff(1, 69))
	assert.Equal(t, [][]byte{
		{0xe1, 0x00, 0x48},
		{0x91, 69, 100},
		{0x81, 69, 0},
	}, w.sent)

	w.err = errors.New("port closed")
	assert.Error(t, s.NoteOn(0, 60, 8192))
	assert.Error(t, s.NoteOff(0, 60))
}

func TestKeyVoicesAreAnnouncedOnTheWire(t *testing.T) {
	w := &wire{}
	c, kb := newEngine(voice.WithNoteSender(NewSender(w.send)))
	r := NewRouter(c, kb)

	r.HandleBytes([]byte{0x90, 72, 100})
	r.HandleBytes([]byte{0x80, 72, 0})

	// key 12 is C5 at 523.26Hz, 0.01 cents above note 72
	require.Len(t, w.sent, 3)
	assert.Equal(t, byte(0xec), w.sent[0][0])
	assert.Equal(t, []byte{0x9c, 72, 100}, w.sent[1])
	assert.Equal(t, []byte{0x8c, 72, 0}, w.sent[2])
}
