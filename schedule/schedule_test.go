package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualFiresInOrder(t *testing.T) {
	m := NewManual()
	var got []int
	m.After(20*time.Millisecond, func() { got = append(got, 2) })
	m.After(10*time.Millisecond, func() { got = append(got, 1) })
	m.After(20*time.Millisecond, func() { got = append(got, 3) })

	m.Advance(15 * time.Millisecond)
	assert.Equal(t, []int{1}, got)
	m.Advance(5 * time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 20*time.Millisecond, m.Now())
}

func TestCancelledTaskNeverFires(t *testing.T) {
	m := NewManual()
	fired := false
	task := m.After(time.Millisecond, func() { fired = true })

	assert := assert.New(t)
	assert.Equal(Scheduled, task.State())
	assert.True(task.Cancel())
	assert.False(task.Cancel())
	m.Advance(time.Second)
	assert.False(fired)
	assert.Equal(Cancelled, task.State())
	assert.Equal(0, m.Pending())
}

func TestFiredTaskCannotBeCancelled(t *testing.T) {
	m := NewManual()
	task := m.After(time.Millisecond, func() {})
	m.Advance(time.Millisecond)

	assert.Equal(t, Fired, task.State())
	assert.False(t, task.Cancel())
	assert.Equal(t, Fired, task.State())
}

func TestNilTaskIsCancelled(t *testing.T) {
	var task *Task
	assert.False(t, task.Cancel())
	assert.Equal(t, Cancelled, task.State())
}

func TestRealSchedulerFires(t *testing.T) {
	done := make(chan struct{})
	task := Real{}.After(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not fire")
	}
	assert.Equal(t, Fired, task.State())
}

func TestLoopRunsImmediatelyThenEveryInterval(t *testing.T) {
	m := NewManual()
	n := 0
	l := Start(m, 100*time.Millisecond, func() { n++ })

	assert := assert.New(t)
	assert.Equal(1, n)
	m.Advance(350 * time.Millisecond)
	assert.Equal(4, n)

	l.Stop()
	assert.False(l.Running())
	m.Advance(time.Second)
	assert.Equal(4, n)
	assert.Equal(0, m.Pending())
}

func TestLoopStoppedFromItsOwnCallback(t *testing.T) {
	m := NewManual()
	n := 0
	var l *Loop
	l = Start(m, 10*time.Millisecond, func() {
		n++
		if n == 3 {
			l.Stop()
		}
	})
	m.Advance(time.Second)
	assert.Equal(t, 3, n)
}
