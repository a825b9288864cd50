// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"errors"
	"fmt"

	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/view"
	"github.com/sirupsen/logrus"
	"github.com/swaywm/go-wlroots/wlroots"
)

// Used by outputs without modes, like the window of a nested session
var nestedMode = tree.Mode{Width: 1280, Height: 720}

var ErrModeUnsupported = errors.New("output does not support mode")

// toplevel is an xdg toplevel acting as the client of a view. Its configures
// carry no serial, commits are matched by geometry.
type toplevel struct {
	surface  wlroots.XDGSurface
	topLevel wlroots.XDGTopLevel
	view     *view.View
	// Last geometry fed into the view
	geometry wlroots.GeoBox
}

func (t *toplevel) Configure(box tree.Box) uint32 {
	_, _, width, height := box.Truncated()
	t.surface.TopLevelSetSize(uint32(max(width, 1)), uint32(max(height, 1)))
	return 0
}

func (t *toplevel) Close() {
	t.surface.SendClose()
}

func (t *toplevel) AppID() string {
	return t.topLevel.AppId()
}

func (t *toplevel) Title() string {
	return t.topLevel.Title()
}

// node is the scene node holding the toplevel's surface tree
func (t *toplevel) node() wlroots.SceneNode {
	return t.surface.SceneTree().Node()
}

// output is a wlroots output backing an output of the tree
type output struct {
	wlr  wlroots.Output
	node *tree.Output
}

// CommitState applies enablement and mode. Outputs without modes only
// accept the mode they already have.
func (o *output) CommitState(enabled bool, mode tree.Mode) error {
	state := wlroots.NewOutputState()
	state.StateInit()
	defer state.Finish()
	state.StateSetEnabled(enabled)

	if enabled && len(o.wlr.Modes()) > 0 {
		found := false
		for _, m := range o.wlr.Modes() {
			if int(m.Width()) != mode.Width || int(m.Height()) != mode.Height {
				continue
			}
			if mode.Refresh != 0 && int(m.Refresh()) != mode.Refresh {
				continue
			}
			state.SetMode(m)
			found = true
			break
		}
		if !found {
			return fmt.Errorf("%w %s: %s", ErrModeUnsupported, o.wlr.Name(), mode)
		}
	}
	o.wlr.CommitState(state)
	logrus.WithFields(logrus.Fields{
		"output":  o.wlr.Name(),
		"enabled": enabled,
		"mode":    mode.String(),
	}).Infoln("Committed output state")
	return nil
}

// Modes lists what the output supports, for the ipc
func (o *output) Modes() []tree.Mode {
	var modes []tree.Mode
	for _, m := range o.wlr.Modes() {
		modes = append(modes, tree.Mode{
			Width:   int(m.Width()),
			Height:  int(m.Height()),
			Refresh: int(m.Refresh()),
		})
	}
	return modes
}
