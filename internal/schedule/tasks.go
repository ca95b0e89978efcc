// Package schedule runs cancellable delayed and periodic work keyed by the
// context it belongs to (a folder id, a document id). Scheduling a key again
// replaces the previous task, and a callback that lost the race with Cancel
// is dropped instead of running against a stale context.
package schedule

import (
	"sync"
	"time"
)

type Tasks struct {
	mu    sync.Mutex
	clock Clock
	seq   uint64
	tasks map[string]*task
}

type task struct {
	id       uint64
	timer    Timer
	interval time.Duration
	fn       func()
}

func NewTasks(clock Clock) *Tasks {
	if clock == nil {
		clock = RealClock()
	}
	return &Tasks{
		clock: clock,
		tasks: make(map[string]*task),
	}
}

func (s *Tasks) Clock() Clock {
	return s.clock
}

// After runs fn once after d unless the key is cancelled or rescheduled first.
func (s *Tasks) After(key string, d time.Duration, fn func()) {
	s.schedule(key, d, 0, fn)
}

// Every runs fn every interval until the key is cancelled.
func (s *Tasks) Every(key string, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	s.schedule(key, interval, interval, fn)
}

// Cancel stops the task for key. It reports whether a task was pending.
func (s *Tasks) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	delete(s.tasks, key)
	t.timer.Stop()
	return true
}

func (s *Tasks) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

func (s *Tasks) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, key)
	}
}

func (s *Tasks) schedule(key string, delay, interval time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
	}
	s.seq++
	t := &task{id: s.seq, interval: interval, fn: fn}
	s.tasks[key] = t
	t.timer = s.clock.AfterFunc(delay, func() { s.fire(key, t.id) })
}

func (s *Tasks) fire(key string, id uint64) {
	s.mu.Lock()
	t, ok := s.tasks[key]
	if !ok || t.id != id {
		s.mu.Unlock()
		return
	}
	if t.interval > 0 {
		t.timer = s.clock.AfterFunc(t.interval, func() { s.fire(key, id) })
	} else {
		delete(s.tasks, key)
	}
	fn := t.fn
	s.mu.Unlock()

	fn()
}
