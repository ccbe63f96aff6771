// Package workstation wires the voice engine, keyboard, sequencer, chords
// and MIDI router into one instrument and exposes the operations the CLI
// and the HTTP API drive.
package workstation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jsphweid/keystation/chord"
	"github.com/jsphweid/keystation/constants"
	"github.com/jsphweid/keystation/graph"
	"github.com/jsphweid/keystation/keyboard"
	"github.com/jsphweid/keystation/midi"
	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/sample"
	"github.com/jsphweid/keystation/schedule"
	"github.com/jsphweid/keystation/sequencer"
	"github.com/jsphweid/keystation/sound"
	"github.com/jsphweid/keystation/voice"
	"github.com/pkg/errors"
)

var ErrNoStore = errors.New("no session store configured")

// SessionStore persists whole sessions by name. Both the file and the
// DynamoDB stores satisfy it.
type SessionStore interface {
	Save(ctx context.Context, sess model.Session) error
	Load(ctx context.Context, name string) (model.Session, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

type Config struct {
	SampleRate float64
	// SamplesDir is a directory or base URL; PianoDir and DrumDir are
	// resolved against it.
	SamplesDir string
	PianoDir   string
	DrumDir    string
	PianoFiles []string

	Store     SessionStore
	Scheduler schedule.Scheduler
	Logger    *slog.Logger
	Notifier  voice.Notifier
	// IdleDelay overrides how long the engine waits before reporting
	// silence. Zero keeps the controller default.
	IdleDelay time.Duration
}

// ConfigFromEnv reads the KEYSTATION_* variables.
func ConfigFromEnv() Config {
	return Config{
		SampleRate: constants.GetSampleRate(),
		SamplesDir: constants.GetSamplesDir(),
		PianoDir:   constants.GetPianoSamplesDir(),
		DrumDir:    constants.GetDrumSamplesDir(),
		PianoFiles: constants.GetPianoFiles(),
	}
}

type Workstation struct {
	cfg    Config
	logger *slog.Logger

	ctx    *graph.Context
	voices *voice.Controller
	keys   *keyboard.Keyboard
	seq    *sequencer.Sequencer
	chords *chord.Chords
	router *midi.Router
	loader func(base string) *sample.Loader

	readyMu sync.Mutex
	ready   bool
}

func New(cfg Config) *Workstation {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = constants.DefaultSampleRate
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = schedule.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	w := &Workstation{cfg: cfg, logger: cfg.Logger}
	w.ctx = graph.NewContext(cfg.SampleRate)
	builder := sound.NewBuilder(w.ctx, sound.NewPool())

	opts := []voice.Option{voice.WithScheduler(cfg.Scheduler), voice.WithLogger(cfg.Logger)}
	if cfg.Notifier != nil {
		opts = append(opts, voice.WithNotifier(cfg.Notifier))
	}
	if cfg.IdleDelay > 0 {
		opts = append(opts, voice.WithIdleDelay(cfg.IdleDelay))
	}
	w.voices = voice.NewController(w.ctx, builder, opts...)
	w.keys = keyboard.Default()
	w.seq = sequencer.New(w.voices, w.keys, sequencer.WithScheduler(cfg.Scheduler), sequencer.WithLogger(cfg.Logger))
	w.chords = chord.New(w.voices, w.keys, chord.WithScheduler(cfg.Scheduler), chord.WithLogger(cfg.Logger))
	w.router = midi.NewRouter(w.voices, w.keys, midi.WithTempo(w.seq), midi.WithRouterLogger(cfg.Logger))
	w.loader = func(base string) *sample.Loader {
		l := sample.NewLoader(base)
		l.Logger = cfg.Logger
		return l
	}

	w.seq.OnTempo(w.chords.SetTempo)
	w.voices.OnMute(w.chords.Silence)
	w.voices.OnMute(w.router.Release)
	return w
}

func (w *Workstation) Context() *graph.Context         { return w.ctx }
func (w *Workstation) Voices() *voice.Controller       { return w.voices }
func (w *Workstation) Keyboard() *keyboard.Keyboard    { return w.keys }
func (w *Workstation) Sequencer() *sequencer.Sequencer { return w.seq }
func (w *Workstation) Chords() *chord.Chords           { return w.chords }
func (w *Workstation) Router() *midi.Router            { return w.router }

// EnsureEngineReady loads the piano pool and the drum kit once. Concurrent
// callers wait for the first load. Missing samples are not an error: the
// piano falls back to a sine and each drum to its synthesized sound.
func (w *Workstation) EnsureEngineReady(ctx context.Context) error {
	w.readyMu.Lock()
	defer w.readyMu.Unlock()
	if w.ready {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	piano := w.loader(sample.Join(w.cfg.SamplesDir, w.cfg.PianoDir))
	pool, err := piano.LoadPool(ctx, w.cfg.PianoFiles)
	if err != nil {
		w.logger.Warn("piano samples unavailable, using sine", "error", err)
	}
	w.voices.Builder().Pool().Replace(pool)

	drums := sequencer.Drums()
	names := make([]string, len(drums))
	for i, d := range drums {
		names[i] = d.SampleFile()
	}
	kit := w.loader(sample.Join(w.cfg.SamplesDir, w.cfg.DrumDir)).LoadNamed(ctx, names)
	for i, buf := range kit {
		if buf != nil {
			w.seq.SetDrumSample(drums[i], buf)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	w.ready = true
	w.logger.Info("engine ready", "piano_samples", len(pool), "sample_rate", w.cfg.SampleRate)
	return nil
}

func (w *Workstation) Ready() bool {
	w.readyMu.Lock()
	defer w.readyMu.Unlock()
	return w.ready
}

// StartVoice starts a voice once the engine is ready.
func (w *Workstation) StartVoice(ctx context.Context, freq model.FrequencyPair, id string, src model.SourceCategory, opts ...voice.StartOption) (*voice.Voice, error) {
	if err := w.EnsureEngineReady(ctx); err != nil {
		return nil, err
	}
	return w.voices.Start(freq, id, src, opts...), nil
}

func (w *Workstation) StopVoice(id string, release float64) {
	w.voices.Stop(id, release)
}

// MuteAll silences every voice, the arpeggio and any held chord. The
// sequencer keeps running.
func (w *Workstation) MuteAll() {
	w.voices.MuteAll()
}

// RetunePitch applies a global pitch shift to the keyboard and to every
// sounding voice.
func (w *Workstation) RetunePitch(semitones float64) {
	w.keys.SetPitchShift(semitones)
	w.voices.RetunePitch(semitones)
}

func (w *Workstation) AnyVoiceLive() bool {
	return w.voices.AnyLive()
}

// PressKey sounds keyboard key i as the keys do when clicked or typed.
func (w *Workstation) PressKey(ctx context.Context, i int) (*voice.Voice, error) {
	freq, ok := w.keys.Frequency(i, 0)
	if !ok {
		return nil, errors.Wrapf(keyboard.ErrNoSuchKey, "key %d", i)
	}
	return w.StartVoice(ctx, freq, midi.KeyID(i), model.SourceKey, voice.WithKeyIndex(i))
}

func (w *Workstation) ReleaseKey(i int) {
	w.voices.Stop(midi.KeyID(i), voice.DefaultRelease)
}

func (w *Workstation) PlayChord(ctx context.Context, i int) error {
	if err := w.EnsureEngineReady(ctx); err != nil {
		return err
	}
	return w.chords.Play(i)
}

func (w *Workstation) ReleaseChord(i int) {
	w.chords.Release(i)
}

func (w *Workstation) PlayDrum(ctx context.Context, name string) (*voice.Voice, error) {
	d, err := sequencer.ParseDrum(name)
	if err != nil {
		return nil, err
	}
	if err := w.EnsureEngineReady(ctx); err != nil {
		return nil, err
	}
	return w.seq.PlayDrum(d), nil
}

func (w *Workstation) Play(ctx context.Context) error {
	if err := w.EnsureEngineReady(ctx); err != nil {
		return err
	}
	w.seq.Play()
	return nil
}

func (w *Workstation) Stop() {
	w.seq.Stop()
}

func (w *Workstation) SetTempo(bpm int) int {
	return w.seq.SetTempo(bpm)
}

// SetSoundTypes selects the keys and sequencer sounds by name.
func (w *Workstation) SetSoundTypes(keys, seq string) error {
	k, err := sound.Parse(keys)
	if err != nil {
		return err
	}
	s, err := sound.Parse(seq)
	if err != nil {
		return err
	}
	w.voices.SetSoundTypes(k, s)
	return nil
}

func (w *Workstation) SetCell(row, step int, on bool) error {
	return w.seq.SetCell(row, step, on)
}

func (w *Workstation) SetModTarget(name string) error {
	t, err := midi.ParseModTarget(name)
	if err != nil {
		return err
	}
	w.router.SetModTarget(t)
	return nil
}

func (w *Workstation) SetVolume(b voice.Bus, level float64) {
	w.voices.SetVolume(b, level)
}

// HandleMidi routes raw bytes from a MIDI input or the API.
func (w *Workstation) HandleMidi(ctx context.Context, data []byte) error {
	if err := w.EnsureEngineReady(ctx); err != nil {
		return err
	}
	w.router.HandleBytes(data)
	return nil
}

// EnableMidiOut announces key voices on s; nil turns MIDI-out off.
func (w *Workstation) EnableMidiOut(s *midi.Sender) {
	if s == nil {
		w.voices.SetNoteSender(nil)
		return
	}
	w.voices.SetNoteSender(s)
}

// Export writes the grid as a Standard MIDI File.
func (w *Workstation) Export(out io.Writer) error {
	return midi.WriteExport(out, w.seq.Pattern())
}

// ImportChords replaces the chord definitions with the distinct chords held
// in a MIDI file.
func (w *Workstation) ImportChords(path string) (int, error) {
	s, err := midi.ReadMidiFile(path)
	if err != nil {
		return 0, err
	}
	return w.chords.Import(s)
}

// Render pulls the next mono frames from the graph.
func (w *Workstation) Render(out []float32) {
	w.ctx.Render(out)
}

func (w *Workstation) Status() model.StatusResponse {
	ids := w.voices.IDs()
	return model.StatusResponse{
		Live:       len(ids) > 0,
		Voices:     ids,
		Tempo:      w.seq.Tempo(),
		Playing:    w.seq.Playing(),
		PitchShift: w.voices.PitchShift(),
	}
}
