// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package tree

import (
	"errors"
	"slices"

	"github.com/mstarongithub/wayward/transaction"
	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

var ErrNoTransactionManager = errors.New("tree needs a transaction manager")

type RootState struct {
	Workspaces      []*Workspace
	ActiveWorkspace *Workspace
	ActiveOutput    *Output
}

func (s RootState) clone() RootState {
	s.Workspaces = slices.Clone(s.Workspaces)
	return s
}

type Root struct {
	Node

	Pending   RootState
	Committed RootState
	Current   RootState

	// Bounding box of all enabled outputs, updated by arrange
	Box Box

	// Inner gap between columns and between windows of a split column
	Gaps float64
	// Layout of newly created columns
	DefaultLayout Layout

	txn        *transaction.Manager
	nextID     ID
	nodes      map[ID]*Node
	allOutputs []*Output

	instructions []*Instruction
	onFree       []func(*Node)
	subs         []*transaction.Subscription
}

// NewRoot creates the root of the tree and hooks it into the manager's
// commit, apply and after apply phases. The root has to be created before any
// other collaborator subscribes so its listeners run first.
func NewRoot(txn *transaction.Manager) (*Root, error) {
	if txn == nil {
		return nil, ErrNoTransactionManager
	}
	r := &Root{
		txn:           txn,
		nodes:         make(map[ID]*Node),
		DefaultLayout: LayoutSplit,
	}
	r.init(&r.Node, KindRoot, r)
	r.subs = append(r.subs,
		txn.OnCommit(r.handleCommit),
		txn.OnApply(r.handleApply),
		txn.OnAfterApply(r.handleAfterApply),
	)
	return r, nil
}

// Destroy detaches the tree from the transaction manager
func (r *Root) Destroy() {
	for _, sub := range r.subs {
		sub.Cancel()
	}
	r.subs = nil
}

func (r *Root) init(n *Node, kind Kind, e element) {
	r.nextID++
	n.id = r.nextID
	n.kind = kind
	n.root = r
	n.element = e
	r.nodes[n.id] = n
	// Nothing was committed for a new node yet
	n.SetDirty()
}

func (r *Root) TransactionManager() *transaction.Manager {
	return r.txn
}

// Lookup returns the live node with the given id
func (r *Root) Lookup(id ID) (*Node, bool) {
	n, ok := r.nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes not freed yet, root included
func (r *Root) NodeCount() int {
	return len(r.nodes)
}

// OnFree registers fn to be called whenever a node is finally freed
func (r *Root) OnFree(fn func(*Node)) {
	r.onFree = append(r.onFree, fn)
}

// Instructions returns the nodes captured by the last committed transaction.
// Valid from its commit notification until the next commit.
func (r *Root) Instructions() []*Instruction {
	return r.instructions
}

func (r *Root) State(set StateSet) *RootState {
	switch set {
	case Committed:
		return &r.Committed
	case Current:
		return &r.Current
	default:
		return &r.Pending
	}
}

func (r *Root) snapshot() {
	r.Committed = r.Pending.clone()
}

func (r *Root) applyCommitted() {
	r.Current = r.Committed.clone()
}

func (r *Root) free() {
	logrus.Errorln("The root is never freed")
}

// AllOutputs returns every output, disabled ones included
func (r *Root) AllOutputs() []*Output {
	return r.allOutputs
}

// Outputs returns the outputs enabled in the pending state
func (r *Root) Outputs() []*Output {
	return sliceutils.Filter(r.allOutputs, func(o *Output) bool {
		return o.Pending.Enabled && !o.destroying
	})
}

// OutputByName finds an output whether enabled or not
func (r *Root) OutputByName(name string) *Output {
	for _, o := range r.allOutputs {
		if o.Name == name && !o.destroying {
			return o
		}
	}
	return nil
}

func (r *Root) ActiveWorkspace() *Workspace {
	return r.Pending.ActiveWorkspace
}

func (r *Root) ActiveOutput() *Output {
	if o := r.Pending.ActiveOutput; o != nil && o.Pending.Enabled && !o.destroying {
		return o
	}
	outputs := r.Outputs()
	if len(outputs) == 0 {
		return nil
	}
	return outputs[0]
}

func (r *Root) SetActiveOutput(o *Output) {
	if r.Pending.ActiveOutput == o {
		return
	}
	r.Pending.ActiveOutput = o
	r.SetDirty()
}

func (r *Root) WorkspaceByName(name string) *Workspace {
	for _, ws := range r.Pending.Workspaces {
		if ws.Name == name {
			return ws
		}
	}
	return nil
}

// CreateWorkspace appends a new, empty workspace
func (r *Root) CreateWorkspace(name string) *Workspace {
	ws := newWorkspace(r, name)
	r.Pending.Workspaces = append(r.Pending.Workspaces, ws)
	if r.Pending.ActiveWorkspace == nil {
		r.Pending.ActiveWorkspace = ws
		ws.Pending.Focused = true
	}
	r.SetDirty()
	logrus.WithFields(logrus.Fields{
		"workspace": name,
		"id":        ws.id,
	}).Debugln("Created workspace")
	return ws
}

// SwitchWorkspace makes ws the active workspace. Pinned floating windows
// follow, the previous workspace is destroyed if that leaves it empty.
func (r *Root) SwitchWorkspace(ws *Workspace) {
	old := r.Pending.ActiveWorkspace
	if old == ws || ws == nil || ws.destroying {
		return
	}
	r.Pending.ActiveWorkspace = ws
	ws.Pending.Focused = true
	ws.SetDirty()
	r.SetDirty()

	if old != nil {
		old.Pending.Focused = false
		for _, w := range slices.Clone(old.Pending.Floating) {
			if w.Pending.Pinned {
				w.MoveToWorkspace(ws)
			}
		}
		old.SetDirty()
		if old.IsEmpty() {
			old.BeginDestroy()
		}
	}
}

func (r *Root) removeWorkspace(ws *Workspace) {
	idx := slices.Index(r.Pending.Workspaces, ws)
	if idx < 0 {
		return
	}
	r.Pending.Workspaces = slices.Delete(r.Pending.Workspaces, idx, idx+1)
	if r.Pending.ActiveWorkspace == ws {
		r.Pending.ActiveWorkspace = nil
		if len(r.Pending.Workspaces) > 0 {
			r.Pending.ActiveWorkspace = r.Pending.Workspaces[0]
			r.Pending.ActiveWorkspace.Pending.Focused = true
			r.Pending.ActiveWorkspace.SetDirty()
		}
	}
	r.SetDirty()
}

// FocusedWindow returns the window with input focus in the pending state
func (r *Root) FocusedWindow() *Window {
	ws := r.Pending.ActiveWorkspace
	if ws == nil {
		return nil
	}
	return ws.FocusedWindow()
}

// Windows returns every live window in the tree, in id order
func (r *Root) Windows() []*Window {
	var windows []*Window
	for _, id := range r.sortedIDs() {
		if w, ok := r.nodes[id].Window(); ok && !w.destroying {
			windows = append(windows, w)
		}
	}
	return windows
}

func (r *Root) sortedIDs() []ID {
	ids := make([]ID, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Visits every node reachable through pending state, parents first
func (r *Root) walk(fn func(*Node)) {
	fn(&r.Node)
	for _, o := range r.allOutputs {
		fn(&o.Node)
	}
	for _, ws := range r.Pending.Workspaces {
		fn(&ws.Node)
		for _, c := range ws.Pending.Columns {
			fn(&c.Node)
			for _, w := range c.Pending.Children {
				fn(&w.Node)
			}
		}
		for _, w := range ws.Pending.Floating {
			fn(&w.Node)
		}
	}
}

func (r *Root) capture(n *Node) {
	n.element.snapshot()
	n.dirty = false
	n.ntxnrefs++
	instruction := &Instruction{Node: n, Transaction: r.txn.Sequence()}
	n.instruction = instruction
	r.instructions = append(r.instructions, instruction)
}

func (r *Root) handleCommit() {
	r.instructions = nil
	r.walk(func(n *Node) {
		if n.dirty {
			r.capture(n)
		}
	})
	// Detached nodes (closing windows, emptied columns) are not reachable
	// through the tree anymore but still need their final transaction.
	for _, id := range r.sortedIDs() {
		n := r.nodes[id]
		if !n.dirty {
			continue
		}
		if !n.destroying {
			logrus.WithField("node", n.String()).Debugln("Dirty node not reachable from the root")
		}
		r.capture(n)
	}
	logrus.WithFields(logrus.Fields{
		"txn":          r.txn.Sequence(),
		"instructions": len(r.instructions),
	}).Debugln("Tree committed")
}

func (r *Root) handleApply() {
	for _, instruction := range r.instructions {
		instruction.Node.element.applyCommitted()
		instruction.Node.instruction = nil
	}
}

func (r *Root) handleAfterApply() {
	for _, instruction := range r.instructions {
		n := instruction.Node
		n.ntxnrefs--
		r.tryFree(n)
	}
}

func (r *Root) tryFree(n *Node) {
	if !n.destroying || n.ntxnrefs > 0 || n.dirty || n.freed {
		return
	}
	logrus.WithField("node", n.String()).Debugln("Freeing node")
	n.freed = true
	delete(r.nodes, n.id)
	n.element.free()
	for _, fn := range r.onFree {
		fn(n)
	}
}
