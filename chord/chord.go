// Package chord holds the chord definitions and plays them either as block
// chords or through the arpeggiator.
package chord

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jsphweid/keystation/keyboard"
	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/schedule"
	"github.com/jsphweid/keystation/voice"
	"github.com/pkg/errors"
)

const (
	DefaultChords = 4
	DefaultNotes  = 4
	DefaultTempo  = 120
	MinChords     = 1
	MaxChords     = 12
	MinNotes      = 1
	MaxNotes      = 8

	arpNoteFraction = 0.95
	arpCutRelease   = 0.01
)

var defaultProgression = []int{0, 4, 7, 10}

var (
	ErrNoSuchChord       = errors.New("no such chord")
	ErrChordsOutOfRange  = errors.New("chord count must be between 1 and 12")
	ErrNotesOutOfRange   = errors.New("notes per chord must be between 1 and 8")
	ErrNoSuchNoteInChord = errors.New("no such note in chord")
)

// ID is the name a chord goes by in voice ids, starting at cho1.
func ID(i int) string {
	return fmt.Sprintf("cho%d", i+1)
}

// Player is the part of the voice controller chords drive.
type Player interface {
	Start(freq model.FrequencyPair, id string, src model.SourceCategory, opts ...voice.StartOption) *voice.Voice
	Stop(id string, release float64)
}

type Chords struct {
	mu     sync.Mutex
	player Player
	keys   *keyboard.Keyboard
	sched  schedule.Scheduler
	logger *slog.Logger

	defs  []model.ChordDefinition
	tempo int
	arp   bool

	// ids of the sounding block chord notes
	block []string

	arpChord int
	arpIndex int
	arpSound string
	loop     *schedule.Loop
	gen      int
}

type Option func(*Chords)

func WithScheduler(s schedule.Scheduler) Option {
	return func(c *Chords) {
		c.sched = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Chords) {
		c.logger = l
	}
}

func New(player Player, keys *keyboard.Keyboard, opts ...Option) *Chords {
	c := &Chords{
		player:   player,
		keys:     keys,
		sched:    schedule.Real{},
		logger:   slog.Default(),
		tempo:    DefaultTempo,
		arpChord: -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.defs = c.defaults(DefaultChords)
	return c
}

// defaults lays the progression 0, 4, 7, 10 over the keyboard, moving each
// note to the next occupied key.
func (c *Chords) defaults(n int) []model.ChordDefinition {
	defs := make([]model.ChordDefinition, n)
	for i := range defs {
		defs[i].Name = fmt.Sprintf("Chord %d", i+1)
		defs[i].Notes = make([]*model.ChordNote, DefaultNotes)
		for j := range defs[i].Notes {
			idx := c.keys.ValidFrom(defaultProgression[j%len(defaultProgression)])
			if idx >= 0 {
				defs[i].Notes[j] = &model.ChordNote{KeyIndex: idx}
			}
		}
	}
	return defs
}

// Reset replaces every definition with n default chords.
func (c *Chords) Reset(n int) error {
	if n < MinChords || n > MaxChords {
		return errors.Wrapf(ErrChordsOutOfRange, "got %d", n)
	}
	c.Silence()
	defs := c.defaults(n)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs = defs
	return nil
}

func (c *Chords) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.defs)
}

func (c *Chords) Definition(i int) (model.ChordDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.defs) {
		return model.ChordDefinition{}, errors.Wrapf(ErrNoSuchChord, "chord %d", i)
	}
	return copyDefinition(c.defs[i]), nil
}

func (c *Chords) Definitions() []model.ChordDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]model.ChordDefinition, len(c.defs))
	for i, d := range c.defs {
		res[i] = copyDefinition(d)
	}
	return res
}

func copyDefinition(d model.ChordDefinition) model.ChordDefinition {
	res := model.ChordDefinition{Name: d.Name, Notes: make([]*model.ChordNote, len(d.Notes))}
	for i, n := range d.Notes {
		if n != nil {
			note := *n
			res.Notes[i] = &note
		}
	}
	return res
}

// Load replaces the definitions with saved ones. An empty list restores the
// defaults.
func (c *Chords) Load(defs []model.ChordDefinition) error {
	if len(defs) == 0 {
		return c.Reset(DefaultChords)
	}
	if len(defs) > MaxChords {
		return errors.Wrapf(ErrChordsOutOfRange, "got %d", len(defs))
	}
	loaded := make([]model.ChordDefinition, len(defs))
	for i, d := range defs {
		if len(d.Notes) < MinNotes || len(d.Notes) > MaxNotes {
			return errors.Wrapf(ErrNotesOutOfRange, "chord %d has %d", i, len(d.Notes))
		}
		loaded[i] = copyDefinition(d)
		if loaded[i].Name == "" {
			loaded[i].Name = fmt.Sprintf("Chord %d", i+1)
		}
	}
	c.Silence()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs = loaded
	return nil
}

func (c *Chords) SetName(i int, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.defs) {
		return errors.Wrapf(ErrNoSuchChord, "chord %d", i)
	}
	c.defs[i].Name = name
	return nil
}

// SetNoteCount resizes a chord, keeping the notes that still fit. New notes
// are unassigned.
func (c *Chords) SetNoteCount(i, n int) error {
	if n < MinNotes || n > MaxNotes {
		return errors.Wrapf(ErrNotesOutOfRange, "got %d", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.defs) {
		return errors.Wrapf(ErrNoSuchChord, "chord %d", i)
	}
	notes := make([]*model.ChordNote, n)
	copy(notes, c.defs[i].Notes)
	c.defs[i].Notes = notes
	return nil
}

// SetNote points note j of chord i at a key. A negative key unassigns it.
func (c *Chords) SetNote(i, j, key, octaveOffset int) error {
	if key >= 0 && !c.keys.Valid(key) {
		return errors.Wrapf(keyboard.ErrNoSuchKey, "key %d", key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.defs) {
		return errors.Wrapf(ErrNoSuchChord, "chord %d", i)
	}
	if j < 0 || j >= len(c.defs[i].Notes) {
		return errors.Wrapf(ErrNoSuchNoteInChord, "chord %d note %d", i, j)
	}
	if key < 0 {
		c.defs[i].Notes[j] = nil
		return nil
	}
	c.defs[i].Notes[j] = &model.ChordNote{KeyIndex: key, OctaveOffset: octaveOffset}
	return nil
}

func (c *Chords) Arpeggio() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arp
}

// SetArpeggio switches between block chords and the arpeggiator. Turning it
// off stops a running arpeggio.
func (c *Chords) SetArpeggio(on bool) {
	c.mu.Lock()
	c.arp = on
	var stop string
	if !on {
		stop = c.haltArp()
	}
	c.mu.Unlock()
	c.stopSound(stop, arpCutRelease)
}

// SetTempo changes the arpeggiator speed and restarts a running arpeggio on
// its first note.
func (c *Chords) SetTempo(bpm int) {
	c.mu.Lock()
	c.tempo = bpm
	chord := c.arpChord
	running := c.loop != nil
	c.mu.Unlock()
	if running {
		c.startArp(chord)
	}
}

// StepDuration is a sixteenth note, the length of one arpeggio step.
func (c *Chords) StepDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepDuration()
}

func (c *Chords) stepDuration() time.Duration {
	return time.Duration(60 / float64(c.tempo) / 4 * float64(time.Second))
}

// Play sounds chord i. Any block chord still sounding is released first.
func (c *Chords) Play(i int) error {
	c.mu.Lock()
	if i < 0 || i >= len(c.defs) {
		c.mu.Unlock()
		return errors.Wrapf(ErrNoSuchChord, "chord %d", i)
	}
	block := c.block
	c.block = nil
	arp := c.arp
	c.mu.Unlock()

	for _, id := range block {
		c.player.Stop(id, voice.DefaultRelease)
	}
	if arp {
		c.startArp(i)
		return nil
	}
	c.playBlock(i)
	return nil
}

func (c *Chords) playBlock(i int) {
	c.mu.Lock()
	stop := c.haltArp()
	def := copyDefinition(c.defs[i])
	c.mu.Unlock()
	c.stopSound(stop, arpCutRelease)

	var ids []string
	for j, n := range def.Notes {
		if n == nil {
			continue
		}
		freq, ok := c.keys.Frequency(n.KeyIndex, n.OctaveOffset)
		if !ok {
			continue
		}
		id := fmt.Sprintf("chord_%s_note%d", ID(i), j)
		c.player.Start(freq, id, model.SourceKey)
		ids = append(ids, id)
	}

	c.mu.Lock()
	c.block = append(c.block, ids...)
	c.mu.Unlock()
}

// Release ends chord i: the arpeggio if it is the one running, or the block
// chord when the arpeggiator is off.
func (c *Chords) Release(i int) {
	c.mu.Lock()
	if c.arp {
		var stop string
		if c.arpChord == i {
			stop = c.haltArp()
		}
		c.mu.Unlock()
		c.stopSound(stop, arpCutRelease)
		return
	}
	block := c.block
	c.block = nil
	c.mu.Unlock()
	for _, id := range block {
		c.player.Stop(id, voice.DefaultRelease)
	}
}

// Silence stops the arpeggio and every block chord note.
func (c *Chords) Silence() {
	c.mu.Lock()
	stop := c.haltArp()
	block := c.block
	c.block = nil
	c.mu.Unlock()
	c.stopSound(stop, arpCutRelease)
	for _, id := range block {
		c.player.Stop(id, voice.DefaultRelease)
	}
}

// Playing returns the chord the arpeggiator is running, or -1.
func (c *Chords) Playing() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arpChord
}

func (c *Chords) stopSound(id string, release float64) {
	if id != "" {
		c.player.Stop(id, release)
	}
}

// haltArp stops the loop and returns the id of the arpeggio note that still
// needs stopping.
func (c *Chords) haltArp() string {
	c.gen++
	c.loop.Stop()
	c.loop = nil
	c.arpChord = -1
	id := c.arpSound
	c.arpSound = ""
	return id
}

func (c *Chords) startArp(i int) {
	c.mu.Lock()
	stop := c.haltArp()
	c.arpChord = i
	c.arpIndex = 0
	gen := c.gen
	interval := c.stepDuration()
	c.mu.Unlock()
	c.stopSound(stop, arpCutRelease)

	loop := schedule.Start(c.sched, interval, func() { c.arpTick(gen) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		loop.Stop()
		return
	}
	c.loop = loop
	c.logger.Debug("arpeggio started", "chord", ID(i), "tempo", c.tempo)
}

// arpTick plays the next assigned note of the running chord. A chord with no
// playable notes ends the arpeggio.
func (c *Chords) arpTick(gen int) {
	c.mu.Lock()
	if c.gen != gen || !c.arp || c.arpChord < 0 || c.arpChord >= len(c.defs) {
		stop := ""
		if c.gen == gen {
			stop = c.haltArp()
		}
		c.mu.Unlock()
		c.stopSound(stop, arpCutRelease)
		return
	}
	var notes []model.ChordNote
	for _, n := range c.defs[c.arpChord].Notes {
		if n != nil && c.keys.Valid(n.KeyIndex) {
			notes = append(notes, *n)
		}
	}
	if len(notes) == 0 {
		stop := c.haltArp()
		c.mu.Unlock()
		c.stopSound(stop, arpCutRelease)
		return
	}
	c.arpIndex %= len(notes)
	n := notes[c.arpIndex]
	id := fmt.Sprintf("arp_%s_note%d", ID(c.arpChord), c.arpIndex)
	c.arpIndex++
	freq, ok := c.keys.Frequency(n.KeyIndex, n.OctaveOffset)
	if !ok {
		c.mu.Unlock()
		return
	}
	prev := c.arpSound
	c.arpSound = id
	dur := c.stepDuration().Seconds() * arpNoteFraction
	c.mu.Unlock()

	c.stopSound(prev, arpCutRelease)
	c.player.Start(freq, id, model.SourceKey, voice.WithDuration(dur))
}
