// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package repl

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/k0kubun/pp"
	"github.com/mstarongithub/wayward/commands"
	"github.com/mstarongithub/wayward/desktop"
	"github.com/mstarongithub/wayward/ipc"
	"github.com/mstarongithub/wayward/util"
	"github.com/mstarongithub/wayward/view"
	"github.com/sirupsen/logrus"
)

var ErrUnknownTarget = errors.New("unknown inspect target")

// NewHandler returns the handler for the compositor repl. Everything that
// touches the desktop is run on its loop. quit is called by the quit command.
func NewHandler(ctx context.Context, d *desktop.Desktop, runner *commands.Runner, quit func()) MessageHandler {
	h := &handler{
		ctx:     ctx,
		desktop: d,
		runner:  runner,
		quit:    quit,
	}
	return h.handle
}

type handler struct {
	ctx     context.Context
	desktop *desktop.Desktop
	runner  *commands.Runner
	quit    func()
}

func (h *handler) handle(input string, _ *Repl) (string, error) {
	input = strings.TrimSpace(input)
	if input == "quit" {
		if h.quit != nil {
			h.quit()
		}
		return "Quitting", ErrQuit
	}
	if input == "help" {
		return helpText(), nil
	}
	if target, ok := strings.CutPrefix(input, "inspect "); ok {
		return h.inspect(strings.TrimSpace(target))
	}
	if args, ok := strings.CutPrefix(input, "spawn "); ok {
		return h.spawn(strings.Fields(args))
	}
	// Kept from the early repl, same as exec
	if cmdString, ok := strings.CutPrefix(input, "run "); ok {
		input = "exec " + cmdString
	}

	var err error
	if callErr := h.desktop.Loop.Call(h.ctx, func() { err = h.runner.Run(input) }); callErr != nil {
		return "", callErr
	}
	if err != nil {
		return "", err
	}
	return "ok", nil
}

func (h *handler) inspect(target string) (string, error) {
	var described any
	var err error
	callErr := h.desktop.Loop.Call(h.ctx, func() {
		root := h.desktop.Root
		switch target {
		case "tree":
			described = ipc.DescribeTree(root)
		case "workspaces":
			described = ipc.DescribeWorkspaces(root)
		case "outputs":
			described = ipc.DescribeOutputs(root, true)
		case "transaction":
			described = ipc.DescribeTransaction(h.desktop.Txn)
		case "focused":
			if w := ipc.FocusedWindow(root); w != nil {
				described = ipc.DescribeWindow(w, w)
			} else {
				described = "Nothing focused"
			}
		default:
			err = fmt.Errorf("%w %q", ErrUnknownTarget, target)
		}
	})
	if callErr != nil {
		return "", callErr
	}
	if err != nil {
		return "", err
	}
	logrus.WithField("target", target).Debugln("Inspecting")
	return pp.Sprint(described), nil
}

// spawn <app-id> [latency-ms|wedged] maps a simulated client
func (h *handler) spawn(args []string) (string, error) {
	var appID, behaviour string
	util.Unpack(args, &appID, &behaviour)
	if appID == "" {
		return "", fmt.Errorf("%w: spawn needs an app id", commands.ErrInvalidArgument)
	}
	var latency time.Duration
	wedged := behaviour == "wedged"
	if behaviour != "" && !wedged {
		ms, err := strconv.Atoi(behaviour)
		if err != nil || ms < 0 {
			return "", fmt.Errorf("%w: %q is neither a latency in ms nor wedged", commands.ErrInvalidArgument, behaviour)
		}
		latency = time.Duration(ms) * time.Millisecond
	}

	var v *view.View
	err := h.desktop.Loop.Call(h.ctx, func() {
		client := view.NewSimulatedClient(h.desktop.Loop, appID, latency)
		client.Wedged = wedged
		v = h.desktop.Map(client, &view.SerialAck{})
		client.Bind(v)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Spawned %s as %s", appID, v.Window().String()), nil
}

func helpText() string {
	names := commands.Names()
	slices.Sort(names)
	return "Compositor commands: " + strings.Join(names, ", ") +
		"\nRepl commands: inspect <tree|workspaces|outputs|transaction|focused>, spawn <app-id> [latency-ms|wedged], run <program>, help, quit"
}
