// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package view

import (
	"cmp"
	"errors"
	"slices"

	"github.com/mstarongithub/wayward/transaction"
	"github.com/mstarongithub/wayward/tree"
)

var ErrNoRoot = errors.New("view bridge needs a tree")

// Bridge configures the views of every window a transaction captured and
// holds the transaction until they answered
type Bridge struct {
	root  *tree.Root
	txn   *transaction.Manager
	views map[tree.ID]*View
	subs  []*transaction.Subscription
}

// NewBridge hooks into commit and apply. It must be created after the root so
// the root has captured the transaction's nodes when the bridge looks at them.
func NewBridge(root *tree.Root) (*Bridge, error) {
	if root == nil {
		return nil, ErrNoRoot
	}
	b := &Bridge{
		root:  root,
		txn:   root.TransactionManager(),
		views: make(map[tree.ID]*View),
	}
	b.subs = append(b.subs,
		b.txn.OnCommit(b.handleCommit),
		b.txn.OnApply(b.handleApply),
	)
	root.OnFree(b.handleFree)
	return b, nil
}

func (b *Bridge) Destroy() {
	for _, sub := range b.subs {
		sub.Cancel()
	}
	b.subs = nil
}

// NewView creates the window for a freshly mapped client. The window is
// detached, place it with Workspace.PlaceWindow or FloatWindow.
func (b *Bridge) NewView(client Client, ack Acknowledger) *View {
	v := &View{
		client: client,
		ack:    ack,
	}
	v.window = b.root.NewWindow(v)
	b.views[v.window.ID()] = v
	return v
}

// View returns the view of the window with the given id
func (b *Bridge) View(id tree.ID) (*View, bool) {
	v, ok := b.views[id]
	return v, ok
}

// ViewOf returns the view shown by w
func (b *Bridge) ViewOf(w *tree.Window) (*View, bool) {
	if w == nil {
		return nil, false
	}
	return b.View(w.ID())
}

// Views returns every view in window id order
func (b *Bridge) Views() []*View {
	views := make([]*View, 0, len(b.views))
	for _, v := range b.views {
		views = append(views, v)
	}
	slices.SortFunc(views, func(a, c *View) int {
		return cmp.Compare(a.window.ID(), c.window.ID())
	})
	return views
}

// A client is only told about changes it can act on. Position aware clients
// also learn about moves.
func shouldConfigure(v *View) bool {
	w := v.window
	if w.Destroying() {
		return false
	}
	cx, cy, cw, ch := w.Committed.Box.Truncated()
	ox, oy, ow, oh := w.Current.Box.Truncated()
	if cw != ow || ch != oh {
		return true
	}
	return v.ack.PositionAware() && (cx != ox || cy != oy)
}

func (b *Bridge) handleCommit() {
	for _, instruction := range b.root.Instructions() {
		v, ok := b.views[instruction.Node.ID()]
		if !ok || !shouldConfigure(v) {
			continue
		}
		var lock *transaction.CommitLock
		// Hidden views can't tear, nobody waits for them
		if v.window.IsVisible(tree.Committed) {
			lock = b.txn.AcquireCommitLock()
		}
		v.configure(v.window.Committed.Box, lock)
	}
}

func (b *Bridge) handleApply() {
	for _, instruction := range b.root.Instructions() {
		v, ok := b.views[instruction.Node.ID()]
		if !ok {
			continue
		}
		// Whatever the client did not answer in time is too late now
		v.lock = nil
		v.configuring = false
		v.center()
	}
}

func (b *Bridge) handleFree(n *tree.Node) {
	v, ok := b.views[n.ID()]
	if !ok {
		return
	}
	v.lock.Release()
	v.lock = nil
	delete(b.views, n.ID())
}
