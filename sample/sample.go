// Package sample loads recorded audio into graph buffers: the piano pool,
// the drum kit and user supplied drum sounds.
package sample

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/jsphweid/keystation/graph"
	"github.com/jsphweid/keystation/util"
	"github.com/pkg/errors"
)

var (
	ErrInvalidWav       = errors.New("not a valid wav file")
	ErrUnsupportedDepth = errors.New("unsupported bit depth")
)

// Decode reads a PCM wav stream into a float buffer with samples in [-1, 1].
func Decode(r io.ReadSeeker) (*graph.Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWav
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "decoding pcm")
	}

	chans := int(dec.NumChans)
	if chans == 0 {
		return nil, errors.Wrap(ErrInvalidWav, "no channels")
	}
	depth := int(dec.BitDepth)
	var offset, scale float32
	switch depth {
	case 8:
		offset, scale = 128, 128
	case 16, 24, 32:
		scale = float32(int64(1) << (depth - 1))
	default:
		return nil, errors.Wrapf(ErrUnsupportedDepth, "%d bits", depth)
	}

	frames := len(pcm.Data) / chans
	buf := &graph.Buffer{SampleRate: float64(dec.SampleRate), Channels: make([][]float32, chans)}
	for ch := range buf.Channels {
		data := make([]float32, frames)
		for i := range data {
			data[i] = (float32(pcm.Data[i*chans+ch]) - offset) / scale
		}
		buf.Channels[ch] = data
	}
	return buf, nil
}

// Encode writes b as integer PCM of the given bit depth. Samples outside
// [-1, 1] are clipped.
func Encode(w io.WriteSeeker, b *graph.Buffer, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 {
		return errors.Wrapf(ErrUnsupportedDepth, "%d bits", bitDepth)
	}
	chans := len(b.Channels)
	if chans == 0 {
		return errors.New("buffer has no channels")
	}
	peak := float64(int64(1)<<(bitDepth-1)) - 1
	scale := float64(int64(1) << (bitDepth - 1))
	frames := b.Length()
	data := make([]int, frames*chans)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < chans; ch++ {
			v := float64(b.Channels[ch][i]) * scale
			data[i*chans+ch] = int(util.Clamp(v, -scale, peak))
		}
	}

	enc := wav.NewEncoder(w, int(b.SampleRate), bitDepth, chans, 1)
	pcm := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: int(b.SampleRate), NumChannels: chans},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(pcm); err != nil {
		return errors.Wrap(err, "writing wav")
	}
	return errors.Wrap(enc.Close(), "closing wav")
}

func LoadFile(path string) (*graph.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	buf, err := Decode(f)
	return buf, errors.Wrap(err, path)
}

// SaveFile renders b to a 16 bit wav file.
func SaveFile(path string, b *graph.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := Encode(f, b, 16); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Fetch downloads and decodes a wav file.
func Fetch(ctx context.Context, client *http.Client, url string) (*graph.Buffer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "requesting %s", url)
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", url)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching %s: status %d", url, res.StatusCode)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", url)
	}
	buf, err := Decode(bytes.NewReader(body))
	return buf, errors.Wrap(err, url)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Join resolves sub against base. A sub that is absolute or a URL stands on
// its own.
func Join(base, sub string) string {
	switch {
	case sub == "":
		return base
	case isURL(sub) || filepath.IsAbs(sub):
		return sub
	case isURL(base):
		return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(sub, "/")
	}
	return filepath.Join(base, sub)
}

// Loader resolves sample names against a directory or a base URL.
type Loader struct {
	Base   string
	Client *http.Client
	Logger *slog.Logger
}

func NewLoader(base string) *Loader {
	return &Loader{Base: base, Client: http.DefaultClient, Logger: slog.Default()}
}

func (l *Loader) remote() bool {
	return isURL(l.Base)
}

// Load fetches one named sample.
func (l *Loader) Load(ctx context.Context, name string) (*graph.Buffer, error) {
	if l.remote() {
		return Fetch(ctx, l.Client, Join(l.Base, name))
	}
	return LoadFile(Join(l.Base, name))
}

// LoadNamed loads every name in order. A sample that fails is logged and
// left nil so the caller can fall back per slot.
func (l *Loader) LoadNamed(ctx context.Context, names []string) []*graph.Buffer {
	res := make([]*graph.Buffer, len(names))
	for i, name := range names {
		buf, err := l.Load(ctx, name)
		if err != nil {
			l.Logger.Warn("could not load sample", "name", name, "error", err)
			continue
		}
		res[i] = buf
	}
	return res
}

// LoadPool loads the given names, or every wav file under a local base when
// names is empty, dropping the ones that fail.
func (l *Loader) LoadPool(ctx context.Context, names []string) ([]*graph.Buffer, error) {
	if len(names) == 0 {
		if l.remote() {
			return nil, errors.New("a remote sample pool needs explicit names")
		}
		paths, err := util.GatherAllWavPaths(l.Base, 0)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			rel, err := filepath.Rel(l.Base, p)
			if err != nil {
				return nil, errors.Wrap(err, p)
			}
			names = append(names, rel)
		}
	}
	var pool []*graph.Buffer
	for _, buf := range l.LoadNamed(ctx, names) {
		if buf != nil {
			pool = append(pool, buf)
		}
	}
	if len(pool) == 0 {
		l.Logger.Warn("no samples could be loaded", "base", l.Base)
	}
	return pool, nil
}
