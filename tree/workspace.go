// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package tree

import (
	"slices"

	"github.com/sirupsen/logrus"
)

type FocusMode int

const (
	FocusTiling = FocusMode(iota)
	FocusFloating
)

type WorkspaceState struct {
	Box Box

	// Tiling columns, left to right across all outputs
	Columns  []*Column
	Floating []*Window

	ActiveColumn   *Column
	ActiveFloating *Window
	FocusMode      FocusMode

	// Output the workspace was last arranged against
	Output  *Output
	Focused bool
	Dead    bool
}

func (s WorkspaceState) clone() WorkspaceState {
	s.Columns = slices.Clone(s.Columns)
	s.Floating = slices.Clone(s.Floating)
	return s
}

type Workspace struct {
	Node

	Name string

	Pending   WorkspaceState
	Committed WorkspaceState
	Current   WorkspaceState

	arranged bool
}

func newWorkspace(r *Root, name string) *Workspace {
	ws := &Workspace{Name: name}
	r.init(&ws.Node, KindWorkspace, ws)
	return ws
}

func (ws *Workspace) State(set StateSet) *WorkspaceState {
	switch set {
	case Committed:
		return &ws.Committed
	case Current:
		return &ws.Current
	default:
		return &ws.Pending
	}
}

func (ws *Workspace) IsEmpty() bool {
	return len(ws.Pending.Columns) == 0 && len(ws.Pending.Floating) == 0
}

// IsActive reports whether this is the root's pending active workspace
func (ws *Workspace) IsActive() bool {
	return ws.root.Pending.ActiveWorkspace == ws
}

// AddColumn inserts a new column at index (clamped) on the given output
func (ws *Workspace) AddColumn(output *Output, index int) *Column {
	c := newColumn(ws.root, ws.root.DefaultLayout)
	c.Pending.Workspace = ws
	c.Pending.Output = output
	index = max(0, min(index, len(ws.Pending.Columns)))
	ws.Pending.Columns = slices.Insert(ws.Pending.Columns, index, c)
	ws.SetDirty()
	c.SetDirty()
	return c
}

// ColumnsOn returns the columns of this workspace placed on output, in order
func (ws *Workspace) ColumnsOn(output *Output) []*Column {
	var columns []*Column
	for _, c := range ws.Pending.Columns {
		if c.Pending.Output == output {
			columns = append(columns, c)
		}
	}
	return columns
}

func (ws *Workspace) removeColumn(c *Column) {
	idx := slices.Index(ws.Pending.Columns, c)
	if idx < 0 {
		return
	}
	ws.Pending.Columns = slices.Delete(ws.Pending.Columns, idx, idx+1)
	if ws.Pending.ActiveColumn == c {
		ws.Pending.ActiveColumn = nil
		if len(ws.Pending.Columns) > 0 {
			ws.Pending.ActiveColumn = ws.Pending.Columns[max(0, idx-1)]
		}
	}
	c.Pending.Workspace = nil
	ws.SetDirty()
}

func (ws *Workspace) addFloating(w *Window) {
	ws.Pending.Floating = append(ws.Pending.Floating, w)
	w.Pending.Workspace = ws
	w.Pending.Parent = nil
	w.Pending.Floating = true
	ws.SetDirty()
	w.SetDirty()
}

func (ws *Workspace) removeFloating(w *Window) {
	idx := slices.Index(ws.Pending.Floating, w)
	if idx < 0 {
		return
	}
	ws.Pending.Floating = slices.Delete(ws.Pending.Floating, idx, idx+1)
	if ws.Pending.ActiveFloating == w {
		ws.Pending.ActiveFloating = nil
		if len(ws.Pending.Floating) > 0 {
			ws.Pending.ActiveFloating = ws.Pending.Floating[len(ws.Pending.Floating)-1]
		} else {
			ws.Pending.FocusMode = FocusTiling
		}
	}
	ws.SetDirty()
}

// FocusedWindow returns the window that has focus within this workspace
func (ws *Workspace) FocusedWindow() *Window {
	if ws.Pending.FocusMode == FocusFloating && ws.Pending.ActiveFloating != nil {
		return ws.Pending.ActiveFloating
	}
	if c := ws.Pending.ActiveColumn; c != nil && c.Pending.ActiveChild != nil {
		return c.Pending.ActiveChild
	}
	if ws.Pending.ActiveFloating != nil {
		return ws.Pending.ActiveFloating
	}
	return nil
}

// Focus makes w the focused window of the workspace
func (ws *Workspace) Focus(w *Window) {
	if w == nil || w.Pending.Workspace != ws {
		return
	}
	if w.Pending.Floating {
		ws.Pending.ActiveFloating = w
		ws.Pending.FocusMode = FocusFloating
	} else if c := w.Pending.Parent; c != nil {
		ws.Pending.ActiveColumn = c
		ws.Pending.FocusMode = FocusTiling
		c.SetActiveChild(w)
	}
	ws.SetDirty()
}

// Windows returns the tiling windows column by column, then the floating ones
func (ws *Workspace) Windows() []*Window {
	var windows []*Window
	for _, c := range ws.Pending.Columns {
		windows = append(windows, c.Pending.Children...)
	}
	return append(windows, ws.Pending.Floating...)
}

// BeginDestroy removes the workspace from the root. Any windows left move to
// the new active workspace.
func (ws *Workspace) BeginDestroy() {
	if ws.destroying {
		return
	}
	r := ws.root
	target := r.Pending.ActiveWorkspace
	if target == ws {
		target = nil
		for _, other := range r.Pending.Workspaces {
			if other != ws {
				target = other
				break
			}
		}
	}
	if target == nil && !ws.IsEmpty() {
		logrus.WithField("workspace", ws.Name).Warnln("Not destroying the last workspace while it holds windows")
		return
	}

	ws.Pending.Dead = true
	ws.Pending.Focused = false
	r.removeWorkspace(ws)
	for _, w := range ws.Windows() {
		w.MoveToWorkspace(target)
	}
	for _, c := range slices.Clone(ws.Pending.Columns) {
		c.BeginDestroy()
	}
	ws.beginDestroy()
}

func (ws *Workspace) snapshot() {
	ws.Committed = ws.Pending.clone()
}

func (ws *Workspace) applyCommitted() {
	ws.Current = ws.Committed.clone()
}

func (ws *Workspace) free() {}
