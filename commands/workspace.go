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
	"strings"

	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/util"
)

// workspace <name>|next|prev
func (r *Runner) workspace(args []string) error {
	ws, err := r.workspaceTarget(args)
	if err != nil {
		return err
	}
	r.desktop.Root.SwitchWorkspace(ws)
	return nil
}

// Resolves next/prev relative to the active workspace, anything else is a
// name. Named workspaces are created when missing.
func (r *Runner) workspaceTarget(args []string) (*tree.Workspace, error) {
	name := strings.Join(args, " ")
	if name == "" {
		return nil, fmt.Errorf("%w: missing workspace name", ErrInvalidArgument)
	}
	root := r.desktop.Root
	if name != "next" && name != "prev" {
		return r.desktop.Workspace(name), nil
	}
	workspaces := root.Pending.Workspaces
	idx := slices.Index(workspaces, root.ActiveWorkspace())
	if idx < 0 || len(workspaces) == 0 {
		return nil, fmt.Errorf("%w: no active workspace", ErrInvalidArgument)
	}
	if name == "next" {
		idx = (idx + 1) % len(workspaces)
	} else {
		idx = (idx - 1 + len(workspaces)) % len(workspaces)
	}
	return workspaces[idx], nil
}

// gaps inner <px>
func (r *Runner) gaps(args []string) error {
	var kind, amount string
	util.Unpack(args, &kind, &amount)
	if kind != "inner" {
		return fmt.Errorf("%w: only inner gaps are supported", ErrInvalidArgument)
	}
	px, err := strconv.ParseFloat(amount, 64)
	if err != nil || px < 0 {
		return fmt.Errorf("%w: %q is not a gap size", ErrInvalidArgument, amount)
	}
	root := r.desktop.Root
	if root.Gaps == px {
		return nil
	}
	// Gaps are configuration read by arrange, not node state with a pending
	// and committed copy. Geometry only changes once the queued transaction
	// arranges and commits with them.
	root.Gaps = px
	root.SetDirty()
	return nil
}

func (r *Runner) exec(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: nothing to execute", ErrInvalidArgument)
	}
	return r.Exec(strings.Join(args, " "))
}
