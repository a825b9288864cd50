// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/util"
)

// output <name> enable|disable|toggle|mode WxH[@mHz]|position X Y
func (r *Runner) output(args []string) error {
	var name, action, first, second string
	util.Unpack(args, &name, &action, &first, &second)
	o := r.desktop.Root.OutputByName(name)
	if o == nil {
		return fmt.Errorf("%w: no output named %q", ErrInvalidArgument, name)
	}
	switch action {
	case "enable", "disable", "toggle":
		enabled, err := parseToggle([]string{action}, o.Pending.Enabled)
		if err != nil {
			return err
		}
		if !enabled && len(r.desktop.Root.Outputs()) == 1 && o.Pending.Enabled {
			return fmt.Errorf("%w: refusing to disable the last output", ErrInvalidArgument)
		}
		o.SetEnabled(enabled)
	case "mode":
		mode, err := ParseMode(first)
		if err != nil {
			return err
		}
		o.SetMode(mode)
	case "position", "pos":
		x, errX := strconv.ParseFloat(first, 64)
		y, errY := strconv.ParseFloat(second, 64)
		if errX != nil || errY != nil {
			return fmt.Errorf("%w: position needs two numbers", ErrInvalidArgument)
		}
		o.SetPosition(x, y)
	default:
		return fmt.Errorf("%w: unknown output action %q", ErrInvalidArgument, action)
	}
	return nil
}

// ParseMode reads a mode written as WIDTHxHEIGHT with an optional @REFRESH
// in millihertz, e.g. 1920x1080@60000
func ParseMode(s string) (tree.Mode, error) {
	var mode tree.Mode
	size, refresh, hasRefresh := strings.Cut(s, "@")
	width, height, ok := strings.Cut(size, "x")
	if !ok {
		return mode, fmt.Errorf("%w: mode %q is not WIDTHxHEIGHT", ErrInvalidArgument, s)
	}
	var err error
	if mode.Width, err = strconv.Atoi(width); err != nil || mode.Width <= 0 {
		return mode, fmt.Errorf("%w: bad width in mode %q", ErrInvalidArgument, s)
	}
	if mode.Height, err = strconv.Atoi(height); err != nil || mode.Height <= 0 {
		return mode, fmt.Errorf("%w: bad height in mode %q", ErrInvalidArgument, s)
	}
	if hasRefresh {
		if mode.Refresh, err = strconv.Atoi(refresh); err != nil || mode.Refresh < 0 {
			return mode, fmt.Errorf("%w: bad refresh rate in mode %q", ErrInvalidArgument, s)
		}
	}
	return mode, nil
}
