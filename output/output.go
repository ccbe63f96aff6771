// Package output plays the rendered graph on the default audio device.
package output

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/jsphweid/keystation/constants"
	"github.com/pkg/errors"
)

// Renderer fills out with the next mono frames.
type Renderer interface {
	Render(out []float32)
}

// Reader turns a Renderer into the float32 little-endian byte stream oto
// pulls from. Mono frames are copied to every output channel.
type Reader struct {
	mu       sync.Mutex
	r        Renderer
	channels int
	frames   []float32
}

func NewReader(r Renderer, channels int) *Reader {
	if channels < 1 {
		channels = 1
	}
	return &Reader{r: r, channels: channels, frames: make([]float32, constants.RenderChunkFrames)}
}

func (rd *Reader) Read(p []byte) (int, error) {
	rd.mu.Lock()
	defer rd.mu.Unlock()

	frameBytes := 4 * rd.channels
	n := len(p) / frameBytes
	if n == 0 {
		return 0, nil
	}
	if cap(rd.frames) < n {
		rd.frames = make([]float32, n)
	}
	frames := rd.frames[:n]
	rd.r.Render(frames)

	off := 0
	for _, f := range frames {
		bits := math.Float32bits(f)
		for ch := 0; ch < rd.channels; ch++ {
			binary.LittleEndian.PutUint32(p[off:], bits)
			off += 4
		}
	}
	return off, nil
}

// Player owns the oto context. Only one can exist per process.
type Player struct {
	mu      sync.Mutex
	ctx     *oto.Context
	player  *oto.Player
	started bool
}

func NewPlayer(r Renderer, sampleRate, channels int) (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening audio device")
	}
	<-ready
	return &Player{ctx: ctx, player: ctx.NewPlayer(NewReader(r, channels))}, nil
}

func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started && p.player != nil {
		p.player.Play()
		p.started = true
	}
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	p.player = nil
	p.started = false
	return errors.Wrap(err, "closing audio player")
}
