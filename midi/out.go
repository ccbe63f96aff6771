package midi

import (
	"strings"
	"sync"

	"github.com/jsphweid/keystation/pitch"
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const noteOnVelocity = 100

var ErrNoPort = errors.New("midi port not found")

// Sender announces key voices on an output: a pitch bend followed by the
// note on, and a note off when the voice stops.
type Sender struct {
	mu   sync.Mutex
	send func(data []byte) error
}

func NewSender(send func(data []byte) error) *Sender {
	return &Sender{send: send}
}

// NewPortSender sends through an opened driver port.
func NewPortSender(out drivers.Out) *Sender {
	return NewSender(out.Send)
}

func (s *Sender) NoteOn(channel, note uint8, bend uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.send(midi.Pitchbend(channel, pitch.Relative(bend)).Bytes()); err != nil {
		return errors.Wrap(err, "sending pitch bend")
	}
	if err := s.send(midi.NoteOn(channel, note, noteOnVelocity).Bytes()); err != nil {
		return errors.Wrap(err, "sending note on")
	}
	return nil
}

func (s *Sender) NoteOff(channel, note uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.send(midi.NoteOff(channel, note).Bytes()), "sending note off")
}

// OpenOut opens the first output whose name contains name, or the first
// output when name is empty.
func OpenOut(name string) (drivers.Out, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, errors.Wrap(err, "listing midi outputs")
	}
	for _, out := range outs {
		if name == "" || strings.Contains(out.String(), name) {
			if err := out.Open(); err != nil {
				return nil, errors.Wrapf(err, "opening %s", out)
			}
			return out, nil
		}
	}
	return nil, errors.Wrapf(ErrNoPort, "output %q", name)
}

// OpenIn opens an input the same way OpenOut does.
func OpenIn(name string) (drivers.In, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, errors.Wrap(err, "listing midi inputs")
	}
	for _, in := range ins {
		if name == "" || strings.Contains(in.String(), name) {
			if err := in.Open(); err != nil {
				return nil, errors.Wrapf(err, "opening %s", in)
			}
			return in, nil
		}
	}
	return nil, errors.Wrapf(ErrNoPort, "input %q", name)
}

// Listen feeds every message from in to the router until stop is called.
// Listener errors, such as a disconnected device, go to onError.
func Listen(in drivers.In, r *Router, onError func(error)) (stop func(), err error) {
	if onError == nil {
		onError = func(error) {}
	}
	stop, err = midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		r.Handle(msg)
	}, midi.HandleError(onError))
	if err != nil {
		return nil, errors.Wrapf(err, "listening to %s", in)
	}
	return stop, nil
}

// Ports lists the names of the available inputs and outputs.
func Ports() (ins, outs []string, err error) {
	inPorts, err := drivers.Ins()
	if err != nil {
		return nil, nil, errors.Wrap(err, "listing midi inputs")
	}
	outPorts, err := drivers.Outs()
	if err != nil {
		return nil, nil, errors.Wrap(err, "listing midi outputs")
	}
	for _, p := range inPorts {
		ins = append(ins, p.String())
	}
	for _, p := range outPorts {
		outs = append(outs, p.String())
	}
	return ins, outs, nil
}

// Close shuts the registered driver down.
func Close() {
	drivers.Close()
}
