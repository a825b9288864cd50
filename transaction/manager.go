// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package transaction makes layout updates atomic.
//
// Layout changes are made to the pending state of tree nodes, which are then
// marked dirty. The manager batches everything dirtied within one loop
// iteration into a transaction. Committing it asks every affected client for
// its new size, then waits until all of them have answered (or the timeout
// passed) before the new state is applied all at once.
//
// The manager itself knows nothing about nodes. Collaborators hook into the
// phases: the tree snapshots dirty nodes on commit and copies them to current
// on apply, views take a commit lock per outstanding configure, the scene and
// IPC observe apply and after apply.
package transaction

import (
	"errors"
	"time"

	"github.com/mstarongithub/wayward/loop"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 200 * time.Millisecond

// How many locks the ForceWait debug mode adds so that releases never reach zero
const forcedWaitLocks = 1 << 20

var ErrNoScheduler = errors.New("transaction manager needs a scheduler")

type Phase int

const (
	PhaseIdle = Phase(iota)
	PhaseBeforeCommit
	PhaseCommit
	PhaseWaitingConfirm
	PhaseApply
	PhaseAfterApply
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBeforeCommit:
		return "before_commit"
	case PhaseCommit:
		return "commit"
	case PhaseWaitingConfirm:
		return "waiting_confirm"
	case PhaseApply:
		return "apply"
	case PhaseAfterApply:
		return "after_apply"
	default:
		return "unknown"
	}
}

// Debug switches, all off by default
type Debug struct {
	// Apply without waiting for any client
	NoAtomic bool
	// Never consider a transaction ready, every transaction ends by timeout
	ForceWait bool
	// Log how long each transaction waited for its clients
	Timings bool
}

type Stats struct {
	// Number of transactions applied so far
	Applied uint64
	// Number of those that were applied because of the timeout
	TimedOut uint64
	// Configures sent for the last committed transaction
	LastConfigures int
	// Whether the last applied transaction timed out
	LastTimedOut bool
	// Time between commit and apply of the last transaction
	LastWait time.Duration
}

type Manager struct {
	sched   loop.Scheduler
	now     func() time.Time
	timeout time.Duration
	debug   Debug

	phase Phase
	depth int
	// Something is dirty and waits for a transaction
	queued bool
	// A flush has been posted to the loop and not run yet
	scheduled bool

	seq           uint64
	numWaiting    int
	numConfigures int
	timedOut      bool
	timer         loop.Timer
	commitTime    time.Time
	stats         Stats

	beforeCommit signal
	commit       signal
	apply        signal
	afterApply   signal
}

type Option func(*Manager)

func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

func WithDebug(debug Debug) Option {
	return func(m *Manager) {
		m.debug = debug
	}
}

// WithClock sets the time source used for timing statistics
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func New(sched loop.Scheduler, opts ...Option) (*Manager, error) {
	if sched == nil {
		return nil, ErrNoScheduler
	}
	m := &Manager{
		sched:   sched,
		now:     time.Now,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Destroy disarms the timeout. Listeners are kept, the manager just stops progressing
func (m *Manager) Destroy() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Subscribe registers fn for the notification fired when entering phase.
// Only the before commit, commit, apply and after apply phases notify,
// subscribing to any other phase returns nil.
func (m *Manager) Subscribe(phase Phase, fn Listener) *Subscription {
	switch phase {
	case PhaseBeforeCommit:
		return m.beforeCommit.add(fn)
	case PhaseCommit:
		return m.commit.add(fn)
	case PhaseApply:
		return m.apply.add(fn)
	case PhaseAfterApply:
		return m.afterApply.add(fn)
	default:
		logrus.WithField("phase", phase).Errorln("Phase has no notification to subscribe to")
		return nil
	}
}

func (m *Manager) OnBeforeCommit(fn Listener) *Subscription {
	return m.Subscribe(PhaseBeforeCommit, fn)
}

func (m *Manager) OnCommit(fn Listener) *Subscription {
	return m.Subscribe(PhaseCommit, fn)
}

func (m *Manager) OnApply(fn Listener) *Subscription {
	return m.Subscribe(PhaseApply, fn)
}

func (m *Manager) OnAfterApply(fn Listener) *Subscription {
	return m.Subscribe(PhaseAfterApply, fn)
}

func (m *Manager) Phase() Phase {
	return m.phase
}

func (m *Manager) Depth() int {
	return m.depth
}

// Queued reports whether something was dirtied and waits for the next transaction
func (m *Manager) Queued() bool {
	return m.queued
}

// Scheduled reports whether a deferred flush is posted to the loop
func (m *Manager) Scheduled() bool {
	return m.scheduled
}

func (m *Manager) InProgress() bool {
	return m.depth > 0
}

// Sequence returns the number of the transaction last committed, starting at 1
func (m *Manager) Sequence() uint64 {
	return m.seq
}

func (m *Manager) NumWaiting() int {
	return m.numWaiting
}

func (m *Manager) NumConfigures() int {
	return m.numConfigures
}

func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// SetTimeout changes the timeout for transactions committed from now on
func (m *Manager) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	m.timeout = timeout
}

func (m *Manager) Debug() Debug {
	return m.debug
}

func (m *Manager) SetDebug(debug Debug) {
	m.debug = debug
}

func (m *Manager) Stats() Stats {
	return m.stats
}

// EnsureQueued records that there is work for a transaction and makes sure a
// flush runs on the next loop iteration. Any number of calls within one
// iteration end up in the same transaction.
func (m *Manager) EnsureQueued() {
	m.queued = true
	m.schedule()
}

func (m *Manager) schedule() {
	if m.scheduled {
		return
	}
	if err := m.sched.Post(m.flushQueued); err != nil {
		logrus.WithError(err).Errorln("Unable to schedule transaction")
		return
	}
	m.scheduled = true
}

func (m *Manager) flushQueued() {
	m.scheduled = false
	m.BeginTransaction()
	m.EndTransaction()
}

// BeginTransaction opens a (possibly nested) transaction scope. Only ending
// the outermost scope can commit.
func (m *Manager) BeginTransaction() {
	if m.depth >= 2 {
		logrus.WithField("depth", m.depth+1).Warnln("Deeply nested transaction scope")
	}
	m.depth++
}

// EndTransaction closes a scope. Ending the outermost scope commits what is
// queued, unless another transaction is still in flight: transactions never
// interleave, queued work waits for the next one.
func (m *Manager) EndTransaction() {
	if m.depth == 0 {
		logrus.Warnln("Ending a transaction that has not begun")
		return
	}
	if m.depth != 1 || m.phase != PhaseIdle || !m.queued {
		m.depth--
		return
	}

	m.seq++
	log := logrus.WithField("txn", m.seq)

	m.phase = PhaseBeforeCommit
	m.beforeCommit.emit()

	m.queued = false
	m.numWaiting = 0
	m.timedOut = false

	m.phase = PhaseCommit
	m.commit.emit()

	m.numConfigures = m.numWaiting
	m.commitTime = m.now()
	log.WithField("configures", m.numConfigures).Debugln("Transaction committed")

	if m.debug.NoAtomic {
		m.numWaiting = 0
	} else if m.debug.ForceWait {
		m.numWaiting += forcedWaitLocks
	}

	m.phase = PhaseWaitingConfirm
	if m.numWaiting > 0 {
		seq := m.seq
		timer, err := m.sched.AfterFunc(m.timeout, func() { m.handleTimeout(seq) })
		if err != nil {
			log.WithError(err).Errorln("Unable to create transaction timer (some imperfect frames might be rendered)")
			m.numWaiting = 0
		} else {
			m.timer = timer
		}
	}

	m.depth--
	m.progress()
}

func (m *Manager) handleTimeout(seq uint64) {
	if seq != m.seq || m.phase != PhaseWaitingConfirm {
		return
	}
	logrus.WithFields(logrus.Fields{
		"txn":     seq,
		"waiting": m.numWaiting,
	}).Debugln("Transaction timed out")
	m.timer = nil
	m.numWaiting = 0
	m.timedOut = true
	m.progress()
}

func (m *Manager) progress() {
	if m.phase != PhaseWaitingConfirm || m.numWaiting > 0 {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.applyTransaction()
}

func (m *Manager) applyTransaction() {
	wait := m.now().Sub(m.commitTime)
	m.stats.Applied++
	if m.timedOut {
		m.stats.TimedOut++
	}
	m.stats.LastConfigures = m.numConfigures
	m.stats.LastTimedOut = m.timedOut
	m.stats.LastWait = wait

	logrus.WithField("txn", m.seq).Debugln("Applying transaction")

	m.phase = PhaseApply
	m.apply.emit()

	m.phase = PhaseAfterApply
	m.afterApply.emit()

	if m.debug.Timings {
		ms := float64(wait) / float64(time.Millisecond)
		logrus.WithFields(logrus.Fields{
			"txn":    m.seq,
			"ms":     ms,
			"frames": ms / (1000.0 / 60),
		}).Debugln("Transaction waited for clients")
	}

	m.numConfigures = 0
	m.timedOut = false
	m.phase = PhaseIdle

	// Anything dirtied while this transaction was in flight, including by the
	// apply listeners, gets its own transaction one iteration later.
	if m.queued {
		m.schedule()
	}
}

// AcquireCommitLock makes the transaction being committed wait for one more
// acknowledgement. Only valid while handling the commit notification,
// otherwise it returns nil (and releasing nil is a no-op).
func (m *Manager) AcquireCommitLock() *CommitLock {
	if m.phase != PhaseCommit {
		logrus.WithField("phase", m.phase).Warnln("Commit lock acquired outside of commit")
		return nil
	}
	m.numWaiting++
	return &CommitLock{manager: m, txn: m.seq}
}

// ReleaseCommitLock is the same as lock.Release()
func (m *Manager) ReleaseCommitLock(lock *CommitLock) {
	lock.Release()
}

func (m *Manager) release(lock *CommitLock) {
	if lock.txn != m.seq || (m.phase != PhaseCommit && m.phase != PhaseWaitingConfirm) {
		// The transaction was already applied, most likely by the timeout
		logrus.WithField("txn", lock.txn).Debugln("Stale commit lock released")
		return
	}
	if m.numWaiting > 0 {
		m.numWaiting--
	}
	if m.numWaiting == 0 {
		logrus.WithField("txn", m.seq).Debugln("Transaction is ready")
	}
	// While committing, EndTransaction takes care of progressing
	if m.phase == PhaseWaitingConfirm {
		m.progress()
	}
}

// CommitLock is one outstanding acknowledgement for a committed transaction
type CommitLock struct {
	manager  *Manager
	txn      uint64
	released bool
}

// Release gives the lock back. Releasing twice, releasing nil or releasing a
// lock whose transaction already applied does nothing.
func (l *CommitLock) Release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	l.manager.release(l)
}

// Transaction returns the sequence number of the transaction the lock belongs to
func (l *CommitLock) Transaction() uint64 {
	if l == nil {
		return 0
	}
	return l.txn
}
