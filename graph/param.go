package graph

import (
	"math"
	"sort"
)

// EventKind identifies an automation point on a Param timeline.
type EventKind int

const (
	SetValue EventKind = iota
	LinearRamp
	ExponentialRamp
	SetTarget
)

func (k EventKind) String() string {
	switch k {
	case SetValue:
		return "set"
	case LinearRamp:
		return "linear"
	case ExponentialRamp:
		return "exponential"
	case SetTarget:
		return "target"
	}
	return "unknown"
}

// Event is a single automation point. Seq is the global mutation order of the
// owning Context, which lets callers compare when two things were scheduled.
type Event struct {
	Kind  EventKind
	Time  float64
	Value float64
	Tau   float64
	Seq   int64
}

// minExpValue replaces zero or negative targets of exponential ramps, which
// have no defined curve.
const minExpValue = 1e-7

// Param is an automatable value. Its rendered value is the automation curve
// plus the sum of every node connected into it (FM, LFO).
type Param struct {
	ctx          *Context
	defaultValue float64
	events       []Event
	inputs       []Node
}

func newParam(ctx *Context, v float64) *Param {
	return &Param{ctx: ctx, defaultValue: v}
}

func (p *Param) insert(e Event) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	e.Seq = p.ctx.nextSeq()
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].Time > e.Time })
	p.events = append(p.events, Event{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(Event{Kind: SetValue, Time: t, Value: v})
}

func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(Event{Kind: LinearRamp, Time: t, Value: v})
}

func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	if v <= 0 {
		v = minExpValue
	}
	p.insert(Event{Kind: ExponentialRamp, Time: t, Value: v})
}

// SetTargetAtTime approaches target exponentially from t with time constant tau.
func (p *Param) SetTargetAtTime(target, t, tau float64) {
	if tau <= 0 {
		p.SetValueAtTime(target, t)
		return
	}
	p.insert(Event{Kind: SetTarget, Time: t, Value: target, Tau: tau})
}

// CancelScheduledValues drops every automation point at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.ctx.nextSeq()
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].Time >= t })
	p.events = p.events[:i]
}

// Events returns a copy of the automation timeline.
func (p *Param) Events() []Event {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// ValueAt evaluates the automation curve at t, ignoring connected inputs.
func (p *Param) ValueAt(t float64) float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.curve(t)
}

// Value evaluates the automation curve at the current render time.
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.curve(p.ctx.now())
}

func (p *Param) curve(t float64) float64 {
	prevTime, prevValue := 0.0, p.defaultValue
	for i, e := range p.events {
		switch e.Kind {
		case SetValue:
			if e.Time > t {
				return prevValue
			}
			prevTime, prevValue = e.Time, e.Value
		case LinearRamp:
			if e.Time > t {
				span := e.Time - prevTime
				if span <= 0 {
					return e.Value
				}
				return prevValue + (e.Value-prevValue)*(t-prevTime)/span
			}
			prevTime, prevValue = e.Time, e.Value
		case ExponentialRamp:
			if e.Time > t {
				span := e.Time - prevTime
				if span <= 0 {
					return e.Value
				}
				if prevValue == 0 || (prevValue > 0) != (e.Value > 0) {
					return prevValue
				}
				return prevValue * math.Pow(e.Value/prevValue, (t-prevTime)/span)
			}
			prevTime, prevValue = e.Time, e.Value
		case SetTarget:
			if e.Time > t {
				return prevValue
			}
			end := math.Inf(1)
			if i+1 < len(p.events) {
				end = p.events[i+1].Time
			}
			from := prevValue
			if t < end {
				return e.Value + (from-e.Value)*math.Exp(-(t-e.Time)/e.Tau)
			}
			prevTime = e.Time
			prevValue = e.Value + (from-e.Value)*math.Exp(-(end-e.Time)/e.Tau)
		}
	}
	return prevValue
}

func (p *Param) addInput(n Node) {
	p.inputs = append(p.inputs, n)
}

func (p *Param) removeInput(n Node) {
	p.inputs = removeNode(p.inputs, n)
}

// at is the rendered value; callers hold the context lock.
func (p *Param) at(frame int64, t float64) float64 {
	v := p.curve(t)
	if len(p.inputs) == 0 {
		return v
	}
	live := p.inputs[:0]
	for _, in := range p.inputs {
		if in.done(t) {
			continue
		}
		v += in.pull(frame, t)
		live = append(live, in)
	}
	p.inputs = live
	return v
}
