// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package loop implements the cooperative event loop the compositor core runs on.
//
// All tree mutation happens inside tasks run by a single Loop. Other goroutines
// (IPC connections, the repl) never touch the tree directly, they Post a task.
package loop

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("event loop has been closed")

// Scheduler is the part of the loop the transaction manager depends on
type Scheduler interface {
	// Post queues fn to run on the next loop iteration
	Post(fn func()) error
	// AfterFunc arms a one-shot timer. fn runs on the loop once d has elapsed
	AfterFunc(d time.Duration, fn func()) (Timer, error)
}

type Timer interface {
	// Stop disarms the timer. Returns false if it already fired or was stopped
	Stop() bool
}

type timer struct {
	loop     *Loop
	deadline time.Time
	fn       func()
	seq      uint64
	index    int // position in the heap, -1 once removed
}

func (t *timer) Stop() bool {
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.loop.timers, t.index)
	return true
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
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

type Loop struct {
	mu       sync.Mutex
	tasks    []func()
	timers   timerHeap
	timerSeq uint64
	now      func() time.Time
	wake     chan struct{}
	closed   bool
}

type Option func(*Loop)

// WithClock replaces time.Now as the loop's time source
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		l.now = now
	}
}

func New(opts ...Option) *Loop {
	l := &Loop{
		now:  time.Now,
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
	return nil
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) (Timer, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	l.timerSeq++
	t := &timer{
		loop:     l,
		deadline: l.now().Add(d),
		fn:       fn,
		seq:      l.timerSeq,
	}
	heap.Push(&l.timers, t)
	l.mu.Unlock()
	l.signal()
	return t, nil
}

// Call posts fn and blocks until the loop has run it.
// Must not be called from the loop itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Dispatch runs one loop iteration without blocking: every task posted before
// the call, then every timer whose deadline has passed. Tasks posted while
// dispatching are left for the next iteration. Returns the number of callbacks run.
func (l *Loop) Dispatch() int {
	l.mu.Lock()
	tasks := l.tasks
	l.tasks = nil
	l.mu.Unlock()

	for _, task := range tasks {
		task()
	}
	ran := len(tasks)

	for {
		l.mu.Lock()
		if len(l.timers) == 0 || l.timers[0].deadline.After(l.now()) {
			l.mu.Unlock()
			break
		}
		t := heap.Pop(&l.timers).(*timer)
		l.mu.Unlock()
		t.fn()
		ran++
	}
	return ran
}

// Pending reports whether any task is queued or any timer is armed
func (l *Loop) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks) > 0 || len(l.timers) > 0
}

// Timeout is how long a loop driving Dispatch from outside may block before
// the next call. Zero while tasks are queued, the time left until the earliest
// timer otherwise, and never more than limit.
func (l *Loop) Timeout(limit time.Duration) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) > 0 {
		return 0
	}
	if len(l.timers) == 0 {
		return limit
	}
	return min(max(0, l.timers[0].deadline.Sub(l.now())), limit)
}

func (l *Loop) nextDeadline() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.timers) == 0 {
		return time.Time{}, false
	}
	return l.timers[0].deadline, true
}

// Run dispatches until ctx is cancelled, sleeping between iterations.
// Used when nothing else (like a wlroots display) drives Dispatch.
func (l *Loop) Run(ctx context.Context) error {
	logrus.Debugln("Event loop running")
	defer l.Close()
	for {
		if l.Dispatch() > 0 {
			continue
		}

		var sleep *time.Timer
		var timeout <-chan time.Time
		if deadline, ok := l.nextDeadline(); ok {
			sleep = time.NewTimer(deadline.Sub(l.now()))
			timeout = sleep.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		case <-timeout:
		}
		if sleep != nil {
			sleep.Stop()
		}
	}
}

// Close drops all queued work. Further Post and AfterFunc calls fail with ErrClosed
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.tasks = nil
	for _, t := range l.timers {
		t.index = -1
	}
	l.timers = nil
}
