package conquest

import (
	"container/heap"
	"time"
)

// Handle identifies a scheduled timer. The zero Handle is never issued.
type Handle uint64

type timer struct {
	handle Handle
	at     time.Duration
	seq    uint64
	every  time.Duration
	fn     func()
	index  int
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler is a simulated-time timer queue. Timers due at the same instant
// fire in the order they were scheduled.
type Scheduler struct {
	now    time.Duration
	seq    uint64
	next   Handle
	timers timerHeap
	live   map[Handle]*timer
}

// NewScheduler creates a Scheduler at time zero.
func NewScheduler() *Scheduler {
	return &Scheduler{live: make(map[Handle]*timer)}
}

// Now returns the current simulated time.
func (s *Scheduler) Now() time.Duration { return s.now }

// Len returns the number of pending timers.
func (s *Scheduler) Len() int { return len(s.timers) }

// After runs fn once, d after the current time.
func (s *Scheduler) After(d time.Duration, fn func()) Handle {
	return s.schedule(d, 0, fn)
}

// Every runs fn first after delay, then every interval until cancelled.
func (s *Scheduler) Every(delay, interval time.Duration, fn func()) Handle {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return s.schedule(delay, interval, fn)
}

func (s *Scheduler) schedule(d, every time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}
	s.next++
	s.seq++
	t := &timer{handle: s.next, at: s.now + d, seq: s.seq, every: every, fn: fn}
	s.live[t.handle] = t
	heap.Push(&s.timers, t)
	return t.handle
}

// Cancel removes a pending timer. Cancelling an expired or unknown handle is a no-op.
func (s *Scheduler) Cancel(h Handle) bool {
	t, ok := s.live[h]
	if !ok {
		return false
	}
	delete(s.live, h)
	if t.index >= 0 {
		heap.Remove(&s.timers, t.index)
	}
	return true
}

// Advance moves time forward by dt, firing every timer that falls due.
// Timers scheduled by a callback for a time within the window also fire.
func (s *Scheduler) Advance(dt time.Duration) {
	end := s.now + dt
	for len(s.timers) > 0 && s.timers[0].at <= end {
		t := heap.Pop(&s.timers).(*timer)
		s.now = t.at
		if t.every > 0 {
			s.seq++
			t.at += t.every
			t.seq = s.seq
			heap.Push(&s.timers, t)
		} else {
			delete(s.live, t.handle)
		}
		t.fn()
	}
	s.now = end
}
