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

// Content is what a window displays, usually a client view
type Content interface {
	AppID() string
	Title() string
}

type WindowState struct {
	// Layout coordinates of the window
	Box Box

	Fullscreen bool
	Floating   bool
	// Floating window that follows the active workspace
	Pinned bool

	// Column holding the window, nil when floating
	Parent    *Column
	Workspace *Workspace
	Output    *Output

	Dead bool
}

type Window struct {
	Node

	Content Content

	Pending   WindowState
	Committed WindowState
	Current   WindowState

	// Share of the column height, normalized by arrange
	HeightFraction float64
	// Height shared by all windows of the column, used for resizing
	ChildTotalHeight float64

	// Geometry the window had when it last floated
	floatingBox Box
}

// NewWindow creates a detached window for content. Use Workspace.PlaceWindow to show it.
func (r *Root) NewWindow(content Content) *Window {
	w := &Window{Content: content}
	r.init(&w.Node, KindWindow, w)
	return w
}

func (w *Window) State(set StateSet) *WindowState {
	switch set {
	case Committed:
		return &w.Committed
	case Current:
		return &w.Current
	default:
		return &w.Pending
	}
}

func (w *Window) AppID() string {
	if w.Content == nil {
		return ""
	}
	return w.Content.AppID()
}

func (w *Window) Title() string {
	if w.Content == nil {
		return ""
	}
	return w.Content.Title()
}

// PlaceWindow tiles w after the focused window of the workspace and focuses it.
// A new column is created when the active column is on another output.
func (ws *Workspace) PlaceWindow(w *Window) {
	output := ws.root.ActiveOutput()
	column := ws.Pending.ActiveColumn
	if column != nil && column.Pending.Output != output {
		column = nil
	}
	if column == nil {
		index := len(ws.Pending.Columns)
		if active := ws.Pending.ActiveColumn; active != nil {
			index = slices.Index(ws.Pending.Columns, active) + 1
		}
		column = ws.AddColumn(output, index)
	}
	index := len(column.Pending.Children)
	if active := column.Pending.ActiveChild; active != nil {
		index = column.IndexOf(active) + 1
	}
	column.InsertWindow(w, index)
	ws.Focus(w)
}

// FloatWindow adds w to the floating windows of ws and focuses it
func (ws *Workspace) FloatWindow(w *Window) {
	ws.addFloating(w)
	if w.floatingBox.Empty() {
		w.floatingBox = defaultFloatingBox(ws.Pending.Box)
	}
	w.setBox(w.floatingBox)
	ws.Focus(w)
}

func defaultFloatingBox(area Box) Box {
	width := max(MinSaneWidth, area.Width/2)
	height := max(MinSaneHeight, area.Height/2)
	return Box{
		X:      area.X + (area.Width-width)/2,
		Y:      area.Y + (area.Height-height)/2,
		Width:  width,
		Height: height,
	}
}

// Detach removes w from its column or from the floating list of its workspace.
// A column left empty is destroyed.
func (w *Window) Detach() {
	ws := w.Pending.Workspace
	if ws == nil {
		return
	}
	if w.Pending.Floating {
		ws.removeFloating(w)
	} else if c := w.Pending.Parent; c != nil {
		c.removeWindow(w)
	}
	w.Pending.Workspace = nil
	w.Pending.Parent = nil
	w.SetDirty()
}

// MoveToWorkspace moves w to ws, keeping it floating if it was
func (w *Window) MoveToWorkspace(ws *Workspace) {
	if ws == nil || w.Pending.Workspace == ws {
		return
	}
	floating := w.Pending.Floating
	if floating {
		w.floatingBox = w.Pending.Box
	}
	w.Detach()
	w.Pending.Fullscreen = false
	if floating {
		ws.FloatWindow(w)
	} else {
		ws.PlaceWindow(w)
	}
}

func (w *Window) SetFullscreen(enabled bool) {
	if w.Pending.Fullscreen == enabled {
		return
	}
	if enabled {
		if ws := w.Pending.Workspace; ws != nil {
			for _, other := range ws.Windows() {
				if other != w && other.Pending.Fullscreen {
					other.Pending.Fullscreen = false
					other.SetDirty()
				}
			}
			ws.SetDirty()
		}
		if w.Pending.Floating {
			w.floatingBox = w.Pending.Box
		}
	}
	w.Pending.Fullscreen = enabled
	w.SetDirty()
	if !enabled && w.Pending.Floating && !w.floatingBox.Empty() {
		w.setBox(w.floatingBox)
	}
}

func (w *Window) SetFloating(enabled bool) {
	ws := w.Pending.Workspace
	if w.Pending.Floating == enabled || ws == nil {
		return
	}
	w.Detach()
	if enabled {
		ws.FloatWindow(w)
	} else {
		w.floatingBox = w.Pending.Box
		w.Pending.Floating = false
		w.Pending.Pinned = false
		ws.PlaceWindow(w)
	}
}

// SetPinned only has an effect on floating windows
func (w *Window) SetPinned(enabled bool) {
	if w.Pending.Pinned == enabled {
		return
	}
	if enabled && !w.Pending.Floating {
		logrus.WithField("window", w.String()).Debugln("Only floating windows can be pinned")
		return
	}
	w.Pending.Pinned = enabled
	w.SetDirty()
}

// SetFloatingBox moves and resizes a floating window. Arrange clamps it to a sane size.
func (w *Window) SetFloatingBox(box Box) {
	if !w.Pending.Floating {
		return
	}
	w.floatingBox = box
	w.setBox(box)
}

// BeginDestroy detaches the window. It is freed once the transactions
// referencing it have applied.
func (w *Window) BeginDestroy() {
	if w.destroying {
		return
	}
	w.Pending.Dead = true
	w.Pending.Fullscreen = false
	w.Detach()
	w.beginDestroy()
}

// IsVisible works out from the selected state set whether the window can be seen
func (w *Window) IsVisible(set StateSet) bool {
	s := w.State(set)
	if s.Dead || s.Workspace == nil {
		return false
	}
	if w.root.State(set).ActiveWorkspace != s.Workspace {
		return false
	}
	if s.Fullscreen {
		return true
	}
	wss := s.Workspace.State(set)
	covered := func(other *Window) bool {
		os := other.State(set)
		return other != w && os.Fullscreen && os.Output == s.Output
	}
	for _, c := range wss.Columns {
		if slices.ContainsFunc(c.State(set).Children, covered) {
			return false
		}
	}
	if slices.ContainsFunc(wss.Floating, covered) {
		return false
	}
	if s.Floating {
		return true
	}
	c := s.Parent
	if c == nil {
		return false
	}
	cs := c.State(set)
	return cs.Layout != LayoutStacked || cs.ActiveChild == w
}

func (w *Window) setBox(b Box) {
	if w.Pending.Box == b {
		return
	}
	w.Pending.Box = b
	w.SetDirty()
}

func (w *Window) setOutput(o *Output) {
	if w.Pending.Output == o {
		return
	}
	w.Pending.Output = o
	w.SetDirty()
}

func (w *Window) snapshot() {
	w.Committed = w.Pending
}

func (w *Window) applyCommitted() {
	w.Current = w.Committed
}

func (w *Window) free() {}
