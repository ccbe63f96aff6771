package sample

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/jsphweid/keystation/graph"
	"github.com/jsphweid/keystation/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWav(t *testing.T, path string, rate, depth, chans int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := wav.NewEncoder(f, rate, depth, chans, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: rate, NumChannels: chans},
		SourceBitDepth: depth,
	}))
	require.NoError(t, enc.Close())
}

func TestDecodeStereo16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	writeWav(t, path, 8000, 16, 2, []int{16384, -16384, 0, 32767, -32768, 8192})

	buf, err := LoadFile(path)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal(8000.0, buf.SampleRate)
	require.Len(t, buf.Channels, 2)
	assert.Equal(3, buf.Length())
	assert.Equal([]float32{0.5, 0, -1}, buf.Channels[0])
	assert.InDelta(-0.5, buf.Channels[1][0], 1e-6)
	assert.InDelta(1.0, buf.Channels[1][1], 1e-4)
	assert.InDelta(0.25, buf.Channels[1][2], 1e-6)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not riff data"), 0o644))
	_, err := LoadFile(path)
	assert.True(t, errors.Is(err, ErrInvalidWav))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	in := &graph.Buffer{SampleRate: 1000, Channels: [][]float32{{0, 0.5, -0.25, 2, -2}}}
	path := filepath.Join(t.TempDir(), "out.wav")
	require.NoError(t, SaveFile(path, in))

	out, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 5, out.Length())
	assert.Equal(t, []float32{0, 0.5, -0.25}, out.Channels[0][:3])
	assert.InDelta(t, 1.0, out.Channels[0][3], 1e-4)
	assert.Equal(t, float32(-1), out.Channels[0][4])

	f, err := os.Create(filepath.Join(t.TempDir(), "x.wav"))
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, errors.Is(Encode(f, in, 12), ErrUnsupportedDepth))
}

func TestLoaderFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeWav(t, filepath.Join(dir, "b.wav"), 1000, 16, 1, []int{1, 2})
	writeWav(t, filepath.Join(dir, "a.wav"), 1000, 16, 1, []int{1, 2, 3})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.wav"), []byte("broken"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	l := NewLoader(dir)
	pool, err := l.LoadPool(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, 3, pool[0].Length())
	assert.Equal(t, 2, pool[1].Length())

	named := l.LoadNamed(context.Background(), []string{"missing.wav", "b.wav"})
	assert.Nil(t, named[0])
	assert.Equal(t, 2, named[1].Length())
}

func TestLoaderOverHTTP(t *testing.T) {
	dir := t.TempDir()
	writeWav(t, filepath.Join(dir, "kick.wav"), 1000, 16, 1, []int{100, 200, 300, 400})
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	l := NewLoader(srv.URL + "/")
	l.Client = srv.Client()
	bufs := l.LoadNamed(context.Background(), []string{"kick.wav", "snare.wav"})
	require.NotNil(t, bufs[0])
	assert.Equal(t, 4, bufs[0].Length())
	assert.Nil(t, bufs[1])

	_, err := l.LoadPool(context.Background(), nil)
	assert.Error(t, err)
}

func TestEncodedBufferRoundTrip(t *testing.T) {
	in := &graph.Buffer{SampleRate: 44100, Channels: [][]float32{{0, 0.25, -1}, {1, 0.5, -0.125}}}
	enc := ToEncoded(in)

	assert := assert.New(t)
	assert.Equal(3, enc.Length)
	assert.Equal(2, enc.NumberOfChannels)
	// 0, 0.25 and -1 as little-endian float32
	assert.Equal("AAAAAAAAgD4AAIC/", enc.Channels[0])

	out, err := FromEncoded(enc)
	require.NoError(t, err)
	assert.Equal(in, out)

	none, err := FromEncoded(nil)
	assert.NoError(err)
	assert.Nil(none)
	assert.Nil(ToEncoded(nil))
}

func TestFromEncodedValidates(t *testing.T) {
	cases := map[string]*model.EncodedBuffer{
		"no rate":        {Length: 1, NumberOfChannels: 1, Channels: []string{"AAAAAA=="}},
		"missing chan":   {SampleRate: 1, Length: 1, NumberOfChannels: 2, Channels: []string{"AAAAAA=="}},
		"bad base64":     {SampleRate: 1, Length: 1, NumberOfChannels: 1, Channels: []string{"***"}},
		"partial sample": {SampleRate: 1, Length: 1, NumberOfChannels: 1, Channels: []string{"AAA="}},
	}
	for name, c := range cases {
		_, err := FromEncoded(c)
		assert.True(t, errors.Is(err, ErrCorruptBuffer), name)
	}

	short, err := FromEncoded(&model.EncodedBuffer{SampleRate: 1, Length: 3, NumberOfChannels: 1, Channels: []string{"AACAPw=="}})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, short.Channels[0])
}

func TestJoin(t *testing.T) {
	assert.Equal(t, filepath.Join("samples", "piano"), Join("samples", "piano"))
	assert.Equal(t, "/abs/drums", Join("samples", "/abs/drums"))
	assert.Equal(t, "https://cdn.test/s/piano", Join("https://cdn.test/s/", "piano"))
	assert.Equal(t, "http://x/y", Join("samples", "http://x/y"))
	assert.Equal(t, "samples", Join("samples", ""))
}
