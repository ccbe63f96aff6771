package sample

import (
	"encoding/base64"
	"encoding/binary"
	"math"

	"github.com/jsphweid/keystation/graph"
	"github.com/jsphweid/keystation/model"
	"github.com/pkg/errors"
)

var ErrCorruptBuffer = errors.New("corrupt encoded buffer")

// ToEncoded stores each channel as base64 of its little-endian float32
// samples.
func ToEncoded(b *graph.Buffer) *model.EncodedBuffer {
	if b == nil {
		return nil
	}
	enc := &model.EncodedBuffer{
		SampleRate:       b.SampleRate,
		Length:           b.Length(),
		NumberOfChannels: len(b.Channels),
		Channels:         make([]string, len(b.Channels)),
	}
	for i, data := range b.Channels {
		raw := make([]byte, 4*len(data))
		for j, v := range data {
			binary.LittleEndian.PutUint32(raw[4*j:], math.Float32bits(v))
		}
		enc.Channels[i] = base64.StdEncoding.EncodeToString(raw)
	}
	return enc
}

// FromEncoded reverses ToEncoded. Channels shorter than Length are padded
// with silence and longer ones are cut.
func FromEncoded(e *model.EncodedBuffer) (*graph.Buffer, error) {
	if e == nil {
		return nil, nil
	}
	if e.SampleRate <= 0 || e.Length < 0 || e.NumberOfChannels <= 0 {
		return nil, errors.Wrapf(ErrCorruptBuffer, "rate %v length %d channels %d",
			e.SampleRate, e.Length, e.NumberOfChannels)
	}
	if len(e.Channels) != e.NumberOfChannels {
		return nil, errors.Wrapf(ErrCorruptBuffer, "%d of %d channels present",
			len(e.Channels), e.NumberOfChannels)
	}
	b := &graph.Buffer{SampleRate: e.SampleRate, Channels: make([][]float32, e.NumberOfChannels)}
	for i, s := range e.Channels {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptBuffer, "channel %d: %v", i, err)
		}
		if len(raw)%4 != 0 {
			return nil, errors.Wrapf(ErrCorruptBuffer, "channel %d has %d bytes", i, len(raw))
		}
		data := make([]float32, e.Length)
		for j := 0; j < e.Length && 4*j < len(raw); j++ {
			data[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*j:]))
		}
		b.Channels[i] = data
	}
	return b, nil
}
