// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package tree holds the layout tree: root -> outputs -> workspaces -> columns -> windows.
//
// Every node keeps three copies of its state. Pending is what handlers and
// commands mutate. Committed is the snapshot taken when a transaction commits,
// it is what clients get configured to. Current is what is on screen and only
// changes when a transaction applies.
package tree

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Smallest size a window may be arranged to
const (
	MinSaneWidth  = 100
	MinSaneHeight = 60
)

type ID uint64

type Kind int

const (
	KindRoot = Kind(iota)
	KindOutput
	KindWorkspace
	KindColumn
	KindWindow
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindOutput:
		return "output"
	case KindWorkspace:
		return "workspace"
	case KindColumn:
		return "column"
	case KindWindow:
		return "window"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StateSet selects one of the three state copies of a node
type StateSet int

const (
	Pending = StateSet(iota)
	Committed
	Current
)

type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

func (b Box) Contains(x, y float64) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// Truncated compares the boxes the way clients see them, in whole pixels
func (b Box) Truncated() (int, int, int, int) {
	return int(b.X), int(b.Y), int(math.Round(b.Width)), int(math.Round(b.Height))
}

// The per-kind half of a node
type element interface {
	snapshot()
	applyCommitted()
	free()
}

// Node is the record every kind of tree node shares.
// The concrete node is reached through the kind checked accessors (Window, Column, ...).
type Node struct {
	id   ID
	kind Kind
	root *Root

	// Pending differs from committed and no transaction has picked it up yet
	dirty bool
	// Number of transaction instructions referencing this node
	ntxnrefs int
	// Teardown has begun, the node is freed once no transaction references it
	destroying bool
	freed      bool

	instruction *Instruction
	element     element
}

// Instruction records that a node was captured by a transaction.
// The snapshot itself lives in the node's committed state.
type Instruction struct {
	Node        *Node
	Transaction uint64
}

func (n *Node) ID() ID {
	return n.id
}

func (n *Node) Kind() Kind {
	return n.kind
}

func (n *Node) Dirty() bool {
	return n.dirty
}

func (n *Node) TxnRefs() int {
	return n.ntxnrefs
}

func (n *Node) Destroying() bool {
	return n.destroying
}

func (n *Node) Freed() bool {
	return n.freed
}

// Instruction returns the instruction of the transaction currently holding
// this node between commit and apply, nil otherwise
func (n *Node) Instruction() *Instruction {
	return n.instruction
}

func (n *Node) String() string {
	return fmt.Sprintf("%s#%d", n.kind, n.id)
}

// SetDirty flags the node for the next transaction. Marking an already dirty node does nothing.
func (n *Node) SetDirty() {
	if n.dirty {
		return
	}
	if n.freed {
		logrus.WithField("node", n.String()).Warnln("Tried to dirty a freed node")
		return
	}
	n.dirty = true
	n.root.txn.EnsureQueued()
}

func (n *Node) Root() (*Root, bool) {
	r, ok := n.element.(*Root)
	return r, ok
}

func (n *Node) Output() (*Output, bool) {
	o, ok := n.element.(*Output)
	return o, ok
}

func (n *Node) Workspace() (*Workspace, bool) {
	w, ok := n.element.(*Workspace)
	return w, ok
}

func (n *Node) Column() (*Column, bool) {
	c, ok := n.element.(*Column)
	return c, ok
}

func (n *Node) Window() (*Window, bool) {
	w, ok := n.element.(*Window)
	return w, ok
}

func (n *Node) beginDestroy() {
	n.destroying = true
	n.SetDirty()
}
