// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"os"
	"strconv"

	"github.com/swaywm/go-wlroots/xkb"
)

// Keysyms outside of latin-1, which maps 1:1 onto keysyms
const (
	keySymReturn = xkb.KeySym(0xff0d)
	keySymLeft   = xkb.KeySym(0xff51)
	keySymUp     = xkb.KeySym(0xff52)
	keySymRight  = xkb.KeySym(0xff53)
	keySymDown   = xkb.KeySym(0xff54)
)

// defaultBindings maps keys pressed together with Alt to commands.
// Shift gives the uppercase keysym, so Alt+Shift+h is 'H'.
func defaultBindings() map[xkb.KeySym]string {
	terminal := os.Getenv("TERMINAL")
	if terminal == "" {
		terminal = "foot"
	}
	bindings := map[xkb.KeySym]string{
		keySymReturn: "exec " + terminal,
		'q':          "kill",
		'f':          "fullscreen toggle",
		' ':          "floating toggle",
		's':          "layout toggle",
		'p':          "pin toggle",
		'h':          "focus left",
		'j':          "focus down",
		'k':          "focus up",
		'l':          "focus right",
		keySymLeft:   "focus left",
		keySymDown:   "focus down",
		keySymUp:     "focus up",
		keySymRight:  "focus right",
		'H':          "move left",
		'J':          "move down",
		'K':          "move up",
		'L':          "move right",
		'r':          "resize grow width 50",
		'R':          "resize shrink width 50",
		'n':          "workspace next",
		'N':          "workspace prev",
	}
	for i := 1; i <= 9; i++ {
		bindings[xkb.KeySym('0'+i)] = "workspace " + strconv.Itoa(i)
	}
	return bindings
}
