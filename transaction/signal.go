// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package transaction

import (
	"container/list"
)

// Listener is notified when the manager enters the phase it subscribed to
type Listener func()

// Subscription is the token returned by Subscribe.
// Cancel removes the listener in constant time and is safe to call more than once.
type Subscription struct {
	signal  *signal
	element *list.Element
}

func (s *Subscription) Cancel() {
	if s == nil || s.element == nil {
		return
	}
	entry := s.element.Value.(*entry)
	entry.removed = true
	s.signal.listeners.Remove(s.element)
	s.element = nil
}

type entry struct {
	fn      Listener
	removed bool
}

// An ordered listener list. Listeners may subscribe or cancel while the signal is emitting:
// cancelled listeners are skipped, new ones only see the next emit.
type signal struct {
	listeners list.List
}

func (s *signal) add(fn Listener) *Subscription {
	return &Subscription{
		signal:  s,
		element: s.listeners.PushBack(&entry{fn: fn}),
	}
}

func (s *signal) emit() {
	snapshot := make([]*entry, 0, s.listeners.Len())
	for e := s.listeners.Front(); e != nil; e = e.Next() {
		snapshot = append(snapshot, e.Value.(*entry))
	}
	for _, entry := range snapshot {
		if entry.removed {
			continue
		}
		entry.fn()
	}
}

func (s *signal) len() int {
	return s.listeners.Len()
}
