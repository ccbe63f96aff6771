// Package sequencer runs the step grid: three drum rows followed by melodic
// rows bound to keyboard keys, advanced by a single periodic loop.
package sequencer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jsphweid/keystation/graph"
	"github.com/jsphweid/keystation/keyboard"
	"github.com/jsphweid/keystation/midi"
	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/schedule"
	"github.com/jsphweid/keystation/util"
	"github.com/jsphweid/keystation/voice"
	"github.com/pkg/errors"
)

const (
	DefaultTempo       = 120
	DefaultSteps       = 16
	DefaultMelodicRows = 5

	MinTempo       = 20
	MaxTempo       = 300
	MinSteps       = 4
	MaxSteps       = 64
	MaxMelodicRows = 13

	// noteFraction of a step is how long a sequenced note sounds.
	noteFraction       = 0.95
	manualDrumDuration = 0.2
	tapResetAfter      = 2 * time.Second
	minTapBPM          = 30.0
	maxTapBPM          = 300.0
)

var (
	ErrStepsOutOfRange = errors.New("steps must be between 4 and 64")
	ErrRowsOutOfRange  = errors.New("melodic rows must be between 0 and 13")
	ErrNoSuchCell      = errors.New("no such cell")
)

// Player is the part of the voice controller the sequencer triggers.
type Player interface {
	Start(freq model.FrequencyPair, id string, src model.SourceCategory, opts ...voice.StartOption) *voice.Voice
	StartSample(id string, buf *graph.Buffer, src model.SourceCategory) *voice.Voice
	StopCategories(sources ...model.SourceCategory)
}

type Sequencer struct {
	mu      sync.Mutex
	player  Player
	keys    *keyboard.Keyboard
	sched   schedule.Scheduler
	logger  *slog.Logger
	clock   func() time.Time
	loop    *schedule.Loop
	playing bool
	gen     int

	tempo   int
	steps   int
	grid    [][]bool
	rowKeys []int
	drums   [DrumRows]*graph.Buffer
	step    int

	taps    int
	lastTap time.Time

	onTempo []func(bpm int)
}

type Option func(*Sequencer)

func WithScheduler(s schedule.Scheduler) Option {
	return func(q *Sequencer) {
		q.sched = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(q *Sequencer) {
		q.logger = l
	}
}

// WithClock replaces time.Now for tap tempo.
func WithClock(now func() time.Time) Option {
	return func(q *Sequencer) {
		q.clock = now
	}
}

func New(player Player, keys *keyboard.Keyboard, opts ...Option) *Sequencer {
	s := &Sequencer{
		player: player,
		keys:   keys,
		sched:  schedule.Real{},
		logger: slog.Default(),
		clock:  time.Now,
		tempo:  DefaultTempo,
		steps:  DefaultSteps,
		step:   -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.grid = newGrid(DrumRows+DefaultMelodicRows, s.steps, nil)
	s.rowKeys = s.defaultRowKeys(DefaultMelodicRows, nil)
	return s
}

func newGrid(rows, steps int, old [][]bool) [][]bool {
	grid := make([][]bool, rows)
	for r := range grid {
		grid[r] = make([]bool, steps)
		if r < len(old) {
			copy(grid[r], old[r])
		}
	}
	return grid
}

// defaultRowKeys keeps the previous key of each row while it is still a
// valid key and falls back to the first valid key otherwise.
func (s *Sequencer) defaultRowKeys(rows int, old []int) []int {
	first := s.keys.FirstValid()
	res := make([]int, rows)
	for i := range res {
		res[i] = first
		if i < len(old) && s.keys.Valid(old[i]) {
			res[i] = old[i]
		}
	}
	return res
}

// StepDuration is a sixteenth note at the current tempo.
func (s *Sequencer) StepDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepDuration()
}

func (s *Sequencer) stepDuration() time.Duration {
	return time.Duration(60 / float64(s.tempo) / 4 * float64(time.Second))
}

func (s *Sequencer) Play() {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = true
	s.step = -1
	s.gen++
	gen := s.gen
	interval := s.stepDuration()
	s.mu.Unlock()

	loop := schedule.Start(s.sched, interval, func() { s.tick(gen) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		loop.Stop()
		return
	}
	s.loop = loop
	s.logger.Debug("sequencer started", "tempo", s.tempo, "steps", s.steps)
}

// Stop halts the loop and force-stops every sequencer voice.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.halt()
	s.mu.Unlock()
	s.player.StopCategories(model.SourceSequencer, model.SourceDrumSample, model.SourceDrumSynth)
}

func (s *Sequencer) halt() {
	s.playing = false
	s.gen++
	s.loop.Stop()
	s.loop = nil
}

func (s *Sequencer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// CurrentStep is the last step played, -1 before the first tick.
func (s *Sequencer) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Sequencer) tick(gen int) {
	s.mu.Lock()
	if !s.playing || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.step = (s.step + 1) % s.steps
	step := s.step
	dur := s.stepDuration().Seconds() * noteFraction

	var triggers []func()
	for row := range s.grid {
		if !s.grid[row][step] {
			continue
		}
		if row < DrumRows {
			d := Drum(row)
			id := fmt.Sprintf("seq_drum_%s_s%d", d, step)
			if buf := s.drums[d]; buf != nil {
				triggers = append(triggers, func() {
					s.player.StartSample(id, buf, model.SourceDrumSample)
				})
				continue
			}
			triggers = append(triggers, func() {
				s.player.Start(model.Fixed(d.FallbackFrequency()), id, model.SourceDrumSynth,
					voice.WithDuration(dur), voice.WithSoundType(d.FallbackType()))
			})
			continue
		}
		freq, ok := s.keys.Frequency(s.rowKeys[row-DrumRows], 0)
		if !ok {
			continue
		}
		id := fmt.Sprintf("seq_r%d_s%d", row, step)
		triggers = append(triggers, func() {
			s.player.Start(freq, id, model.SourceSequencer, voice.WithDuration(dur))
		})
	}
	s.mu.Unlock()

	for _, t := range triggers {
		t()
	}
}

// restart re-creates the loop with the current step length. It is a no-op
// when stopped.
func (s *Sequencer) restart() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.halt()
	s.mu.Unlock()
	s.player.StopCategories(model.SourceSequencer, model.SourceDrumSample, model.SourceDrumSynth)
	s.Play()
}

func (s *Sequencer) Tempo() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

// SetTempo clamps bpm to 20-300, restarts a running loop and notifies tempo
// listeners. It returns the tempo kept.
func (s *Sequencer) SetTempo(bpm int) int {
	s.mu.Lock()
	bpm = util.Clamp(bpm, MinTempo, MaxTempo)
	s.tempo = bpm
	listeners := append([]func(int){}, s.onTempo...)
	s.mu.Unlock()

	s.restart()
	for _, l := range listeners {
		l(bpm)
	}
	return bpm
}

// OnTempo registers a listener for tempo changes, used to restart the
// arpeggiator.
func (s *Sequencer) OnTempo(f func(bpm int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTempo = append(s.onTempo, f)
}

// Tap registers one tap. From the second tap on, taps closer than two
// seconds apart set the tempo when it lands strictly between 30 and 300.
func (s *Sequencer) Tap() (int, bool) {
	now := s.clock()
	s.mu.Lock()
	if s.taps == 0 || now.Sub(s.lastTap) > tapResetAfter {
		s.taps = 1
		s.lastTap = now
		s.mu.Unlock()
		return 0, false
	}
	diff := now.Sub(s.lastTap)
	s.lastTap = now
	s.taps++
	s.mu.Unlock()

	if diff <= 0 {
		return 0, false
	}
	bpm := float64(time.Minute) / float64(diff)
	if bpm <= minTapBPM || bpm >= maxTapBPM {
		return 0, false
	}
	return s.SetTempo(int(bpm + 0.5)), true
}

func (s *Sequencer) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// SetSteps resizes every row, keeping the cells that still fit. A running
// sequencer is stopped.
func (s *Sequencer) SetSteps(n int) error {
	if n < MinSteps || n > MaxSteps {
		return errors.Wrapf(ErrStepsOutOfRange, "got %d", n)
	}
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = n
	s.grid = newGrid(len(s.grid), n, s.grid)
	s.step = -1
	return nil
}

func (s *Sequencer) MelodicRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rowKeys)
}

// SetMelodicRows changes the number of melodic rows, keeping existing rows
// and their keys. A running sequencer is stopped.
func (s *Sequencer) SetMelodicRows(n int) error {
	if n < 0 || n > MaxMelodicRows {
		return errors.Wrapf(ErrRowsOutOfRange, "got %d", n)
	}
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid = newGrid(DrumRows+n, s.steps, s.grid)
	s.rowKeys = s.defaultRowKeys(n, s.rowKeys)
	return nil
}

func (s *Sequencer) RowKey(melodicRow int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if melodicRow < 0 || melodicRow >= len(s.rowKeys) {
		return -1
	}
	return s.rowKeys[melodicRow]
}

func (s *Sequencer) SetRowKey(melodicRow, key int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if melodicRow < 0 || melodicRow >= len(s.rowKeys) {
		return errors.Wrapf(ErrNoSuchCell, "melodic row %d", melodicRow)
	}
	if !s.keys.Valid(key) {
		return errors.Wrapf(keyboard.ErrNoSuchKey, "key %d", key)
	}
	s.rowKeys[melodicRow] = key
	return nil
}

func (s *Sequencer) Cell(row, step int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inGrid(row, step) {
		return false
	}
	return s.grid[row][step]
}

func (s *Sequencer) inGrid(row, step int) bool {
	return row >= 0 && row < len(s.grid) && step >= 0 && step < s.steps
}

func (s *Sequencer) SetCell(row, step int, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inGrid(row, step) {
		return errors.Wrapf(ErrNoSuchCell, "row %d step %d", row, step)
	}
	s.grid[row][step] = on
	return nil
}

// Toggle flips a cell and returns its new state.
func (s *Sequencer) Toggle(row, step int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inGrid(row, step) {
		return false, errors.Wrapf(ErrNoSuchCell, "row %d step %d", row, step)
	}
	s.grid[row][step] = !s.grid[row][step]
	return s.grid[row][step], nil
}

// Grid returns a copy of every row, drum rows first.
func (s *Sequencer) Grid() [][]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newGrid(len(s.grid), s.steps, s.grid)
}

func (s *Sequencer) SetDrumSample(d Drum, buf *graph.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drums[d] = buf
}

func (s *Sequencer) DrumSample(d Drum) *graph.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drums[d]
}

// PlayDrum sounds a drum once on the keys bus, outside the grid.
func (s *Sequencer) PlayDrum(d Drum) *voice.Voice {
	id := fmt.Sprintf("manual_play_%s_%s", d, uuid.New())
	if buf := s.DrumSample(d); buf != nil {
		return s.player.StartSample(id, buf, model.SourceKey)
	}
	return s.player.Start(model.Fixed(d.FallbackFrequency()), id, model.SourceKey,
		voice.WithDuration(manualDrumDuration), voice.WithSoundType(d.FallbackType()))
}

// Pattern is the grid in the form the MIDI file writer takes. Melodic rows
// carry the unshifted frequency of their key.
func (s *Sequencer) Pattern() midi.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := midi.Pattern{Tempo: s.tempo, Steps: s.steps}
	for row := 0; row < DrumRows; row++ {
		p.Drums = append(p.Drums, append([]bool(nil), s.grid[row]...))
	}
	for i, key := range s.rowKeys {
		r := midi.MelodicRow{Cells: append([]bool(nil), s.grid[DrumRows+i]...)}
		if f, ok := s.keys.Frequency(key, 0); ok {
			r.Frequency = f.Base
		}
		p.Melodic = append(p.Melodic, r)
	}
	return p
}

// Load replaces the grid, tempo and row keys from a saved session. A running
// sequencer is stopped.
func (s *Sequencer) Load(sess model.Session) error {
	steps := sess.Steps
	if steps == 0 {
		steps = DefaultSteps
	}
	if steps < MinSteps || steps > MaxSteps {
		return errors.Wrapf(ErrStepsOutOfRange, "got %d", steps)
	}
	rows := len(sess.RowKeys)
	if rows > MaxMelodicRows {
		return errors.Wrapf(ErrRowsOutOfRange, "got %d", rows)
	}
	s.Stop()
	s.mu.Lock()
	s.steps = steps
	s.grid = newGrid(DrumRows+rows, steps, sess.Grid)
	s.rowKeys = s.defaultRowKeys(rows, sess.RowKeys)
	s.step = -1
	s.mu.Unlock()
	if sess.Tempo > 0 {
		s.SetTempo(sess.Tempo)
	}
	return nil
}

// Save fills the sequencer part of a session.
func (s *Sequencer) Save(sess *model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Tempo = s.tempo
	sess.Steps = s.steps
	sess.Grid = newGrid(len(s.grid), s.steps, s.grid)
	sess.RowKeys = append([]int(nil), s.rowKeys...)
}
