// Package schedule runs callbacks after wall-clock delays and hands back
// cancellation handles. Every task ends in exactly one of two terminal states:
// it either fires once or is cancelled before firing.
package schedule

import (
	"sort"
	"sync"
	"time"
)

type State int

const (
	Scheduled State = iota
	Cancelled
	Fired
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Cancelled:
		return "cancelled"
	case Fired:
		return "fired"
	}
	return "unknown"
}

// Task is the handle of one scheduled callback.
type Task struct {
	mu    sync.Mutex
	state State
	timer *time.Timer
}

func (t *Task) State() State {
	if t == nil {
		return Cancelled
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Cancel prevents the callback from running. It reports whether the task was
// still pending; cancelling a fired or cancelled task is a no-op.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Scheduled {
		return false
	}
	t.state = Cancelled
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

func (t *Task) fire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Scheduled {
		return false
	}
	t.state = Fired
	return true
}

type Scheduler interface {
	After(d time.Duration, f func()) *Task
}

// Real schedules on the runtime timers.
type Real struct{}

func (Real) After(d time.Duration, f func()) *Task {
	task := &Task{}
	task.mu.Lock()
	defer task.mu.Unlock()
	task.timer = time.AfterFunc(d, func() {
		if task.fire() {
			f()
		}
	})
	return task
}

// Manual is a deterministic scheduler driven by Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*entry
}

type entry struct {
	due  time.Duration
	seq  int
	task *Task
	f    func()
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) After(d time.Duration, f func()) *Task {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	task := &Task{}
	m.pending = append(m.pending, &entry{due: m.now + d, seq: m.seq, task: task, f: f})
	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].due != m.pending[j].due {
			return m.pending[i].due < m.pending[j].due
		}
		return m.pending[i].seq < m.pending[j].seq
	})
	return task
}

// Advance moves time forward, firing due callbacks in order. Callbacks may
// schedule further tasks; those fire too if they fall inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()
	for {
		m.mu.Lock()
		if len(m.pending) == 0 || m.pending[0].due > target {
			m.now = target
			m.mu.Unlock()
			return
		}
		e := m.pending[0]
		m.pending = m.pending[1:]
		m.now = e.due
		m.mu.Unlock()
		if e.task.fire() {
			e.f()
		}
	}
}

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending counts tasks that are still scheduled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.pending {
		if e.task.State() == Scheduled {
			n++
		}
	}
	return n
}
