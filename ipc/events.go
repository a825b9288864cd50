// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ipc

import (
	"slices"

	"github.com/mstarongithub/wayward/transaction"
	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/util/multiplexer"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventWorkspace   = EventType("workspace")
	EventWindow      = EventType("window")
	EventTransaction = EventType("transaction")
)

// Messages a subscriber may fall behind by before it misses events
const subscriberBuffer = 64

type Event struct {
	Type EventType `json:"type"`
	// What happened: new, close, focus, move, fullscreen_mode or floating
	// for windows; init, focus or empty for workspaces; apply for transactions
	Change      string       `json:"change"`
	Window      *Window      `json:"container,omitempty"`
	Workspace   *Workspace   `json:"current,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

// Events compares the current state after every applied transaction with
// the one before and publishes the differences to all subscribers
type Events struct {
	root   *tree.Root
	txn    *transaction.Manager
	plexer *multiplexer.OneToMany[Event]
	sub    *transaction.Subscription

	windows          map[tree.ID]Window
	workspaces       map[tree.ID]Workspace
	focusedWindow    tree.ID
	focusedWorkspace tree.ID
}

func NewEvents(root *tree.Root) *Events {
	e := &Events{
		root:       root,
		txn:        root.TransactionManager(),
		plexer:     multiplexer.NewOneToMany[Event](subscriberBuffer),
		windows:    make(map[tree.ID]Window),
		workspaces: make(map[tree.ID]Workspace),
	}
	e.plexer.OnDrop = func(receiver string, msg Event) {
		logrus.WithFields(logrus.Fields{
			"subscriber": receiver,
			"event":      msg.Type,
		}).Warnln("Subscriber too slow, dropping event")
	}
	go e.plexer.StartPlexer()
	e.sub = e.txn.OnAfterApply(e.handleAfterApply)
	return e
}

// Close stops publishing and closes every subscription
func (e *Events) Close() {
	e.sub.Cancel()
	e.plexer.CloseSender()
}

// Subscribe registers a receiver for all events under a unique name
func (e *Events) Subscribe(name string) (<-chan Event, error) {
	return e.plexer.MakeReceiver(name)
}

func (e *Events) Unsubscribe(name string) {
	e.plexer.CloseReceiver(name)
}

func (e *Events) Subscribers() int {
	return e.plexer.Receivers()
}

func (e *Events) publish(ev Event) {
	if err := e.plexer.Send(ev); err != nil {
		logrus.WithError(err).Debugln("Event publisher closed")
	}
}

func (e *Events) handleAfterApply() {
	for _, ev := range e.diff() {
		e.publish(ev)
	}
	info := DescribeTransaction(e.txn)
	e.publish(Event{Type: EventTransaction, Change: "apply", Transaction: &info})
}

// Works out the events between the last seen and the current state
func (e *Events) diff() []Event {
	var events []Event
	root := e.root
	seenWindows := make(map[tree.ID]bool)
	seenWorkspaces := make(map[tree.ID]bool)

	for _, ws := range root.Current.Workspaces {
		info := DescribeWorkspace(ws, root)
		seenWorkspaces[ws.ID()] = true
		if _, ok := e.workspaces[ws.ID()]; !ok {
			events = append(events, Event{Type: EventWorkspace, Change: "init", Workspace: &info})
		}
		e.workspaces[ws.ID()] = info

		windows := slices.Clone(info.Floating)
		for _, c := range info.Columns {
			windows = append(windows, c.Windows...)
		}
		for _, w := range windows {
			seenWindows[w.ID] = true
			old, ok := e.windows[w.ID]
			e.windows[w.ID] = w
			switch {
			case !ok:
				events = append(events, windowEvent("new", w))
			case old.Workspace != w.Workspace:
				events = append(events, windowEvent("move", w))
			case old.Fullscreen != w.Fullscreen:
				events = append(events, windowEvent("fullscreen_mode", w))
			case old.Floating != w.Floating:
				events = append(events, windowEvent("floating", w))
			}
		}
	}

	for _, id := range sortedKeys(e.windows) {
		if !seenWindows[id] {
			events = append(events, windowEvent("close", e.windows[id]))
			delete(e.windows, id)
		}
	}
	for _, id := range sortedKeys(e.workspaces) {
		if !seenWorkspaces[id] {
			info := e.workspaces[id]
			events = append(events, Event{Type: EventWorkspace, Change: "empty", Workspace: &info})
			delete(e.workspaces, id)
		}
	}

	if ws := root.Current.ActiveWorkspace; ws != nil && ws.ID() != e.focusedWorkspace {
		e.focusedWorkspace = ws.ID()
		info := e.workspaces[ws.ID()]
		events = append(events, Event{Type: EventWorkspace, Change: "focus", Workspace: &info})
	}
	var focusedID tree.ID
	if w := FocusedWindow(root); w != nil {
		focusedID = w.ID()
	}
	if focusedID != e.focusedWindow {
		e.focusedWindow = focusedID
		if info, ok := e.windows[focusedID]; ok {
			events = append(events, windowEvent("focus", info))
		}
	}
	return events
}

func windowEvent(change string, w Window) Event {
	return Event{Type: EventWindow, Change: change, Window: &w}
}

func sortedKeys[V any](m map[tree.ID]V) []tree.ID {
	keys := make([]tree.ID, 0, len(m))
	for id := range m {
		keys = append(keys, id)
	}
	slices.Sort(keys)
	return keys
}
