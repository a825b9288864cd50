// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package commands

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/util"
)

// Pixels a floating window moves per move command without an explicit amount
const defaultMoveStep = 10

func (r *Runner) focused() (*tree.Window, error) {
	w := r.desktop.Root.FocusedWindow()
	if w == nil {
		return nil, ErrNoFocus
	}
	return w, nil
}

// Parses enable/disable/toggle, toggle when missing
func parseToggle(args []string, current bool) (bool, error) {
	mode := "toggle"
	util.Unpack(args, &mode)
	switch mode {
	case "enable", "on", "yes":
		return true, nil
	case "disable", "off", "no":
		return false, nil
	case "toggle":
		return !current, nil
	default:
		return current, fmt.Errorf("%w: expected enable, disable or toggle, got %q", ErrInvalidArgument, mode)
	}
}

func (r *Runner) layout(args []string) error {
	w, err := r.focused()
	if err != nil {
		return err
	}
	c := w.Pending.Parent
	if c == nil {
		return fmt.Errorf("%w: floating windows have no layout", ErrInvalidArgument)
	}
	var name string
	util.Unpack(args, &name)
	if name == "toggle" {
		if c.Pending.Layout == tree.LayoutSplit {
			c.SetLayout(tree.LayoutStacked)
		} else {
			c.SetLayout(tree.LayoutSplit)
		}
		return nil
	}
	layout, err := tree.ParseLayout(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	c.SetLayout(layout)
	return nil
}

func (r *Runner) fullscreen(args []string) error {
	w, err := r.focused()
	if err != nil {
		return err
	}
	enabled, err := parseToggle(args, w.Pending.Fullscreen)
	if err != nil {
		return err
	}
	w.SetFullscreen(enabled)
	return nil
}

func (r *Runner) floating(args []string) error {
	w, err := r.focused()
	if err != nil {
		return err
	}
	enabled, err := parseToggle(args, w.Pending.Floating)
	if err != nil {
		return err
	}
	w.SetFloating(enabled)
	return nil
}

func (r *Runner) pin(args []string) error {
	w, err := r.focused()
	if err != nil {
		return err
	}
	enabled, err := parseToggle(args, w.Pending.Pinned)
	if err != nil {
		return err
	}
	if enabled && !w.Pending.Floating {
		return fmt.Errorf("%w: only floating windows can be pinned", ErrInvalidArgument)
	}
	w.SetPinned(enabled)
	return nil
}

// focus left|right|up|down|mode_toggle
func (r *Runner) focus(args []string) error {
	ws := r.desktop.Root.ActiveWorkspace()
	if ws == nil {
		return ErrNoFocus
	}
	var direction string
	util.Unpack(args, &direction)
	if direction == "mode_toggle" {
		if ws.Pending.FocusMode == tree.FocusFloating || len(ws.Pending.Floating) == 0 {
			if c := ws.Pending.ActiveColumn; c != nil {
				ws.Focus(c.Pending.ActiveChild)
			}
			return nil
		}
		target := ws.Pending.ActiveFloating
		if target == nil {
			target = ws.Pending.Floating[len(ws.Pending.Floating)-1]
		}
		ws.Focus(target)
		return nil
	}

	w, err := r.focused()
	if err != nil {
		return err
	}
	if w.Pending.Floating {
		// Cycle through the floating windows
		floating := ws.Pending.Floating
		idx := slices.Index(floating, w)
		switch direction {
		case "left", "up":
			ws.Focus(floating[(idx-1+len(floating))%len(floating)])
		case "right", "down":
			ws.Focus(floating[(idx+1)%len(floating)])
		default:
			return fmt.Errorf("%w: unknown direction %q", ErrInvalidArgument, direction)
		}
		return nil
	}
	c := w.Pending.Parent
	switch direction {
	case "left", "right":
		columns := ws.Pending.Columns
		idx := slices.Index(columns, c) + step(direction)
		if idx >= 0 && idx < len(columns) {
			ws.Focus(columns[idx].Pending.ActiveChild)
		}
	case "up", "down":
		children := c.Pending.Children
		idx := c.IndexOf(w) + step(direction)
		if idx >= 0 && idx < len(children) {
			ws.Focus(children[idx])
		}
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidArgument, direction)
	}
	return nil
}

func step(direction string) int {
	switch direction {
	case "left", "up":
		return -1
	default:
		return 1
	}
}

// move left|right|up|down [px], move workspace <name>|next|prev
func (r *Runner) move(args []string) error {
	w, err := r.focused()
	if err != nil {
		return err
	}
	var direction, amount string
	util.Unpack(args, &direction, &amount)
	if direction == "workspace" || direction == "container" {
		rest := args[1:]
		if direction == "container" && len(rest) > 0 && rest[0] == "to" {
			rest = rest[1:]
		}
		if len(rest) > 0 && rest[0] == "workspace" {
			rest = rest[1:]
		}
		ws, err := r.workspaceTarget(rest)
		if err != nil {
			return err
		}
		w.MoveToWorkspace(ws)
		return nil
	}
	switch direction {
	case "left", "right", "up", "down":
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidArgument, direction)
	}

	if w.Pending.Floating {
		px := float64(defaultMoveStep)
		if amount != "" {
			if px, err = strconv.ParseFloat(amount, 64); err != nil {
				return fmt.Errorf("%w: %q is not a distance", ErrInvalidArgument, amount)
			}
		}
		b := w.Pending.Box
		switch direction {
		case "left":
			b.X -= px
		case "right":
			b.X += px
		case "up":
			b.Y -= px
		case "down":
			b.Y += px
		}
		w.SetFloatingBox(b)
		return nil
	}

	c := w.Pending.Parent
	ws := w.Pending.Workspace
	switch direction {
	case "up", "down":
		c.MoveWindow(w, c.IndexOf(w)+step(direction))
	case "left", "right":
		columns := ws.Pending.Columns
		idx := slices.Index(columns, c) + step(direction)
		if idx >= 0 && idx < len(columns) {
			target := columns[idx]
			w.Detach()
			target.InsertWindow(w, len(target.Pending.Children))
		} else {
			// A window alone in an edge column has nowhere to go
			if len(c.Pending.Children) == 1 {
				return nil
			}
			index := 0
			if direction == "right" {
				index = len(columns)
			}
			w.Detach()
			ws.AddColumn(c.Pending.Output, index).InsertWindow(w, 0)
		}
		ws.Focus(w)
	}
	return nil
}

// resize grow|shrink width|height <px>
func (r *Runner) resize(args []string) error {
	w, err := r.focused()
	if err != nil {
		return err
	}
	var how, dimension, amount string
	util.Unpack(args, &how, &dimension, &amount)
	px, err := strconv.ParseFloat(amount, 64)
	if err != nil || px < 0 {
		return fmt.Errorf("%w: %q is not a size", ErrInvalidArgument, amount)
	}
	switch how {
	case "grow":
	case "shrink":
		px = -px
	default:
		return fmt.Errorf("%w: expected grow or shrink, got %q", ErrInvalidArgument, how)
	}

	if w.Pending.Floating {
		b := w.Pending.Box
		switch dimension {
		case "width":
			b.Width += px
		case "height":
			b.Height += px
		default:
			return fmt.Errorf("%w: expected width or height, got %q", ErrInvalidArgument, dimension)
		}
		w.SetFloatingBox(b)
		return nil
	}

	var ok bool
	switch dimension {
	case "width":
		ok = w.Pending.Parent.Resize(px)
	case "height":
		ok = w.ResizeHeight(px)
	default:
		return fmt.Errorf("%w: expected width or height, got %q", ErrInvalidArgument, dimension)
	}
	if !ok {
		return fmt.Errorf("%w: cannot resize %s by %v", ErrInvalidArgument, dimension, px)
	}
	return nil
}

func (r *Runner) kill(_ []string) error {
	v, ok := r.desktop.FocusedView()
	if !ok {
		return ErrNoFocus
	}
	v.Client().Close()
	return nil
}
