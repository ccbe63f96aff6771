package workstation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jsphweid/keystation/graph"
	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/sample"
	"github.com/jsphweid/keystation/sequencer"
	"github.com/jsphweid/keystation/sound"
	"github.com/pkg/errors"
)

// Snapshot captures everything a session stores. An empty name gets a
// generated one.
func (w *Workstation) Snapshot(name string) model.Session {
	if name == "" {
		name = fmt.Sprintf("session-%s", uuid.NewString()[:8])
	}
	sess := model.Session{Name: name}
	w.seq.Save(&sess)
	sess.Chords = w.chords.Definitions()
	sess.Keyboard = w.keys.State()
	keys, seq := w.voices.SoundTypes()
	sess.SoundTypeKeys = keys.String()
	sess.SoundTypeSeq = seq.String()

	for _, d := range sequencer.Drums() {
		if buf := w.seq.DrumSample(d); buf != nil {
			if sess.DrumSamples == nil {
				sess.DrumSamples = make(map[string]*model.EncodedBuffer)
			}
			sess.DrumSamples[d.String()] = sample.ToEncoded(buf)
		}
	}
	return sess
}

// Restore applies a session. Everything is validated before any state
// changes, so a bad session leaves the instrument as it was.
func (w *Workstation) Restore(sess model.Session) error {
	keysType, seqType := w.voices.SoundTypes()
	var err error
	if sess.SoundTypeKeys != "" {
		if keysType, err = sound.Parse(sess.SoundTypeKeys); err != nil {
			return err
		}
	}
	if sess.SoundTypeSeq != "" {
		if seqType, err = sound.Parse(sess.SoundTypeSeq); err != nil {
			return err
		}
	}
	drums := make(map[sequencer.Drum]*model.EncodedBuffer)
	for name, enc := range sess.DrumSamples {
		d, err := sequencer.ParseDrum(name)
		if err != nil {
			return err
		}
		drums[d] = enc
	}
	decoded := make(map[sequencer.Drum]*graph.Buffer)
	for d, enc := range drums {
		buf, err := sample.FromEncoded(enc)
		if err != nil {
			return errors.Wrapf(err, "drum %s", d)
		}
		decoded[d] = buf
	}

	w.voices.MuteAll()
	if len(sess.Keyboard.Keys) > 0 {
		w.keys.Restore(sess.Keyboard)
		w.voices.RetunePitch(w.keys.PitchShift())
	}
	if err := w.seq.Load(sess); err != nil {
		return err
	}
	if err := w.chords.Load(sess.Chords); err != nil {
		return err
	}
	w.voices.SetSoundTypes(keysType, seqType)
	for d, buf := range decoded {
		w.seq.SetDrumSample(d, buf)
	}
	w.logger.Info("session restored", "name", sess.Name, "tempo", w.seq.Tempo())
	return nil
}

func (w *Workstation) SaveSession(ctx context.Context, name string) (string, error) {
	if w.cfg.Store == nil {
		return "", ErrNoStore
	}
	sess := w.Snapshot(name)
	if err := w.cfg.Store.Save(ctx, sess); err != nil {
		return "", err
	}
	return sess.Name, nil
}

func (w *Workstation) LoadSession(ctx context.Context, name string) error {
	if w.cfg.Store == nil {
		return ErrNoStore
	}
	sess, err := w.cfg.Store.Load(ctx, name)
	if err != nil {
		return err
	}
	return w.Restore(sess)
}

func (w *Workstation) ListSessions(ctx context.Context) ([]string, error) {
	if w.cfg.Store == nil {
		return nil, ErrNoStore
	}
	return w.cfg.Store.List(ctx)
}

func (w *Workstation) DeleteSession(ctx context.Context, name string) error {
	if w.cfg.Store == nil {
		return ErrNoStore
	}
	return w.cfg.Store.Delete(ctx, name)
}
