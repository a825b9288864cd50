// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package tree

import (
	"fmt"
	"slices"
)

type Layout int

const (
	LayoutSplit = Layout(iota)
	LayoutStacked
)

func (l Layout) String() string {
	switch l {
	case LayoutSplit:
		return "split"
	case LayoutStacked:
		return "stacked"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

func ParseLayout(s string) (Layout, error) {
	switch s {
	case "split", "splitv":
		return LayoutSplit, nil
	case "stacked", "stacking":
		return LayoutStacked, nil
	default:
		return LayoutSplit, fmt.Errorf("unknown layout %q", s)
	}
}

type ColumnState struct {
	Box    Box
	Layout Layout
	// Top to bottom, also the tab order when stacked
	Children    []*Window
	ActiveChild *Window
	Workspace   *Workspace
	Output      *Output
	Dead        bool
}

func (s ColumnState) clone() ColumnState {
	s.Children = slices.Clone(s.Children)
	return s
}

type Column struct {
	Node

	Pending   ColumnState
	Committed ColumnState
	Current   ColumnState

	// Share of the output width, normalized by arrange
	WidthFraction float64
	// Width shared by all columns of the output, used for resizing
	ChildTotalWidth float64
}

func newColumn(r *Root, layout Layout) *Column {
	c := &Column{}
	r.init(&c.Node, KindColumn, c)
	c.Pending.Layout = layout
	return c
}

func (c *Column) State(set StateSet) *ColumnState {
	switch set {
	case Committed:
		return &c.Committed
	case Current:
		return &c.Current
	default:
		return &c.Pending
	}
}

// InsertWindow attaches w at index (clamped). w must be detached.
func (c *Column) InsertWindow(w *Window, index int) {
	index = max(0, min(index, len(c.Pending.Children)))
	c.Pending.Children = slices.Insert(c.Pending.Children, index, w)
	w.Pending.Parent = c
	w.Pending.Workspace = c.Pending.Workspace
	w.Pending.Floating = false
	w.HeightFraction = 0
	if c.Pending.ActiveChild == nil {
		c.Pending.ActiveChild = w
	}
	c.SetDirty()
	w.SetDirty()
}

// IndexOf returns the position of w in the column or -1
func (c *Column) IndexOf(w *Window) int {
	return slices.Index(c.Pending.Children, w)
}

func (c *Column) removeWindow(w *Window) {
	idx := slices.Index(c.Pending.Children, w)
	if idx < 0 {
		return
	}
	c.Pending.Children = slices.Delete(c.Pending.Children, idx, idx+1)
	if c.Pending.ActiveChild == w {
		c.Pending.ActiveChild = nil
		if len(c.Pending.Children) > 0 {
			c.Pending.ActiveChild = c.Pending.Children[max(0, idx-1)]
		}
	}
	w.Pending.Parent = nil
	c.SetDirty()
	if len(c.Pending.Children) == 0 {
		c.BeginDestroy()
	}
}

func (c *Column) SetLayout(layout Layout) {
	if c.Pending.Layout == layout {
		return
	}
	c.Pending.Layout = layout
	c.SetDirty()
}

func (c *Column) SetActiveChild(w *Window) {
	if c.Pending.ActiveChild == w || w.Pending.Parent != c {
		return
	}
	c.Pending.ActiveChild = w
	c.SetDirty()
}

// BeginDestroy detaches the column from its workspace
func (c *Column) BeginDestroy() {
	if c.destroying {
		return
	}
	if ws := c.Pending.Workspace; ws != nil {
		ws.removeColumn(c)
	}
	c.Pending.Dead = true
	c.beginDestroy()
}

func (c *Column) snapshot() {
	c.Committed = c.Pending.clone()
}

func (c *Column) applyCommitted() {
	c.Current = c.Committed.clone()
}

func (c *Column) free() {}
