package schedule

import (
	"sync"
	"time"
)

// Loop calls a function once immediately and then every interval until Stop.
// The interval is fixed for the lifetime of the loop; changing it means
// stopping and starting a new one.
type Loop struct {
	mu       sync.Mutex
	s        Scheduler
	interval time.Duration
	f        func()
	task     *Task
	stopped  bool
}

func Start(s Scheduler, interval time.Duration, f func()) *Loop {
	l := &Loop{s: s, interval: interval, f: f}
	f()
	l.arm()
	return l
}

func (l *Loop) arm() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.task = l.s.After(l.interval, l.tick)
}

func (l *Loop) tick() {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return
	}
	l.f()
	l.arm()
}

func (l *Loop) Stop() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.task.Cancel()
}

func (l *Loop) Running() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.stopped
}

func (l *Loop) Interval() time.Duration {
	return l.interval
}
