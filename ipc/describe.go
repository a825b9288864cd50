// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ipc

import (
	"github.com/mstarongithub/wayward/transaction"
	"github.com/mstarongithub/wayward/tree"
)

// Descriptions only ever show the current state, what is on screen. Pending
// changes appear once their transaction applied.
type (
	Window struct {
		ID         tree.ID  `json:"id"`
		AppID      string   `json:"app_id"`
		Title      string   `json:"title"`
		Box        tree.Box `json:"rect"`
		Fullscreen bool     `json:"fullscreen"`
		Floating   bool     `json:"floating"`
		Pinned     bool     `json:"sticky"`
		Visible    bool     `json:"visible"`
		Focused    bool     `json:"focused"`
		Workspace  string   `json:"workspace,omitempty"`
		Output     string   `json:"output,omitempty"`
	}

	Column struct {
		ID      tree.ID  `json:"id"`
		Layout  string   `json:"layout"`
		Box     tree.Box `json:"rect"`
		Output  string   `json:"output,omitempty"`
		Windows []Window `json:"windows"`
	}

	Workspace struct {
		ID       tree.ID  `json:"id"`
		Name     string   `json:"name"`
		Focused  bool     `json:"focused"`
		Output   string   `json:"output,omitempty"`
		Box      tree.Box `json:"rect"`
		Columns  []Column `json:"columns"`
		Floating []Window `json:"floating"`
	}

	Output struct {
		ID         tree.ID     `json:"id"`
		Name       string      `json:"name"`
		Enabled    bool        `json:"active"`
		Focused    bool        `json:"focused"`
		Mode       tree.Mode   `json:"current_mode"`
		Modes      []tree.Mode `json:"modes,omitempty"`
		Box        tree.Box    `json:"rect"`
		UsableArea tree.Box    `json:"usable_area"`
	}

	Tree struct {
		Box        tree.Box    `json:"rect"`
		Outputs    []Output    `json:"outputs"`
		Workspaces []Workspace `json:"workspaces"`
	}

	Transaction struct {
		Phase          string `json:"phase"`
		Sequence       uint64 `json:"sequence"`
		Waiting        int    `json:"waiting"`
		TimeoutMs      int64  `json:"timeout_ms"`
		Applied        uint64 `json:"applied"`
		TimedOut       uint64 `json:"timed_out"`
		LastConfigures int    `json:"last_configures"`
		LastTimedOut   bool   `json:"last_timed_out"`
		LastWaitMs     int64  `json:"last_wait_ms"`
	}
)

// ModeLister is implemented by output backends that know which modes the display supports
type ModeLister interface {
	Modes() []tree.Mode
}

func outputName(o *tree.Output) string {
	if o == nil {
		return ""
	}
	return o.Name
}

// Focused window of ws as far as the current state knows
func focusedIn(ws *tree.Workspace) *tree.Window {
	s := ws.Current
	if s.FocusMode == tree.FocusFloating && s.ActiveFloating != nil {
		return s.ActiveFloating
	}
	if c := s.ActiveColumn; c != nil && c.Current.ActiveChild != nil {
		return c.Current.ActiveChild
	}
	return s.ActiveFloating
}

// FocusedWindow returns the window focused in the current state
func FocusedWindow(root *tree.Root) *tree.Window {
	ws := root.Current.ActiveWorkspace
	if ws == nil {
		return nil
	}
	return focusedIn(ws)
}

func DescribeWindow(w *tree.Window, focused *tree.Window) Window {
	s := w.Current
	info := Window{
		ID:         w.ID(),
		AppID:      w.AppID(),
		Title:      w.Title(),
		Box:        s.Box,
		Fullscreen: s.Fullscreen,
		Floating:   s.Floating,
		Pinned:     s.Pinned,
		Visible:    w.IsVisible(tree.Current),
		Focused:    w == focused,
		Output:     outputName(s.Output),
	}
	if s.Workspace != nil {
		info.Workspace = s.Workspace.Name
	}
	return info
}

func DescribeWorkspace(ws *tree.Workspace, root *tree.Root) Workspace {
	focused := FocusedWindow(root)
	s := ws.Current
	info := Workspace{
		ID:       ws.ID(),
		Name:     ws.Name,
		Focused:  root.Current.ActiveWorkspace == ws,
		Output:   outputName(s.Output),
		Box:      s.Box,
		Columns:  []Column{},
		Floating: []Window{},
	}
	for _, c := range s.Columns {
		column := Column{
			ID:      c.ID(),
			Layout:  c.Current.Layout.String(),
			Box:     c.Current.Box,
			Output:  outputName(c.Current.Output),
			Windows: []Window{},
		}
		for _, w := range c.Current.Children {
			column.Windows = append(column.Windows, DescribeWindow(w, focused))
		}
		info.Columns = append(info.Columns, column)
	}
	for _, w := range s.Floating {
		info.Floating = append(info.Floating, DescribeWindow(w, focused))
	}
	return info
}

func DescribeWorkspaces(root *tree.Root) []Workspace {
	workspaces := []Workspace{}
	for _, ws := range root.Current.Workspaces {
		workspaces = append(workspaces, DescribeWorkspace(ws, root))
	}
	return workspaces
}

func DescribeOutput(o *tree.Output, root *tree.Root, includeModes bool) Output {
	info := Output{
		ID:         o.ID(),
		Name:       o.Name,
		Enabled:    o.Current.Enabled,
		Focused:    root.Current.ActiveOutput == o,
		Mode:       o.Current.Mode,
		Box:        o.Current.Box,
		UsableArea: o.Current.UsableArea,
	}
	if lister, ok := o.Backend.(ModeLister); ok && includeModes {
		info.Modes = lister.Modes()
	}
	return info
}

func DescribeOutputs(root *tree.Root, includeModes bool) []Output {
	outputs := []Output{}
	for _, o := range root.AllOutputs() {
		outputs = append(outputs, DescribeOutput(o, root, includeModes))
	}
	return outputs
}

func DescribeTree(root *tree.Root) Tree {
	return Tree{
		Box:        root.Box,
		Outputs:    DescribeOutputs(root, false),
		Workspaces: DescribeWorkspaces(root),
	}
}

func DescribeTransaction(txn *transaction.Manager) Transaction {
	stats := txn.Stats()
	return Transaction{
		Phase:          txn.Phase().String(),
		Sequence:       txn.Sequence(),
		Waiting:        txn.NumWaiting(),
		TimeoutMs:      txn.Timeout().Milliseconds(),
		Applied:        stats.Applied,
		TimedOut:       stats.TimedOut,
		LastConfigures: stats.LastConfigures,
		LastTimedOut:   stats.LastTimedOut,
		LastWaitMs:     stats.LastWait.Milliseconds(),
	}
}
