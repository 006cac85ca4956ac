/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package picker

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending callback. Stop reports whether it prevented the call;
// stopping twice, or after the call, is harmless.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Implementations must run f on the same
// serialized context that feeds the Game its touch events.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// QueueClock hands fired callbacks to the loop reading from queue, so they
// run alongside touch events instead of on a timer goroutine. Once done is
// closed, fired callbacks are dropped.
type QueueClock struct {
	queue chan<- func()
	done  <-chan struct{}
}

func NewQueueClock(queue chan<- func(), done <-chan struct{}) *QueueClock {
	return &QueueClock{queue: queue, done: done}
}

func (c *QueueClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() {
		select {
		case c.queue <- f:
		case <-c.done:
		}
	})
}

// ManualClock is a virtual clock. Callbacks fire synchronously from Advance,
// in deadline order, on the caller's goroutine.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	at    time.Time
	seq   uint64
	f     func()
	done  bool
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.pending = append(c.pending, t)

	return t
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Advance moves time forward by d, firing every timer that comes due,
// including timers scheduled by callbacks fired along the way.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.nextDueLocked(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = t.at
		t.done = true
		c.removeLocked(t)
		c.mu.Unlock()

		t.f()
	}
}

func (c *ManualClock) nextDueLocked(target time.Time) *manualTimer {
	if len(c.pending) == 0 {
		return nil
	}

	sort.Slice(c.pending, func(i, j int) bool {
		if c.pending[i].at.Equal(c.pending[j].at) {
			return c.pending[i].seq < c.pending[j].seq
		}
		return c.pending[i].at.Before(c.pending[j].at)
	})

	if c.pending[0].at.After(target) {
		return nil
	}
	return c.pending[0]
}

func (c *ManualClock) removeLocked(t *manualTimer) {
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	t.clock.removeLocked(t)

	return true
}
