// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package desktop builds the compositor state: event loop, transaction
// manager, layout tree, view bridge and scene, hooked up in the order the
// transaction phases need them.
package desktop

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mstarongithub/wayward/config"
	"github.com/mstarongithub/wayward/loop"
	"github.com/mstarongithub/wayward/scene"
	"github.com/mstarongithub/wayward/transaction"
	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/view"
	"github.com/sirupsen/logrus"
)

var ErrNoLoop = errors.New("desktop needs an event loop")

type Desktop struct {
	Config *config.Config
	Loop   *loop.Loop
	Txn    *transaction.Manager
	Root   *tree.Root
	Views  *view.Bridge
	Scene  *scene.Applier

	arrange *transaction.Subscription
}

// New creates the desktop. sc receives the applied state, opts are applied
// after the ones derived from cfg.
func New(cfg *config.Config, l *loop.Loop, sc scene.Scene, opts ...transaction.Option) (*Desktop, error) {
	if l == nil {
		return nil, ErrNoLoop
	}
	if cfg == nil {
		cfg = config.Default()
	}
	txnOpts := append([]transaction.Option{
		transaction.WithTimeout(cfg.TxnTimeout()),
		transaction.WithDebug(transaction.Debug{
			NoAtomic:  cfg.Debug.NoAtomic,
			ForceWait: cfg.Debug.TxnWait,
			Timings:   cfg.Debug.TxnTimings,
		}),
	}, opts...)
	txn, err := transaction.New(l, txnOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating transaction manager: %w", err)
	}

	// The root has to capture nodes before anyone else looks at a commit
	root, err := tree.NewRoot(txn)
	if err != nil {
		return nil, fmt.Errorf("creating tree: %w", err)
	}
	root.Gaps = cfg.GapsInner
	root.DefaultLayout = cfg.Layout()

	views, err := view.NewBridge(root)
	if err != nil {
		return nil, fmt.Errorf("creating view bridge: %w", err)
	}
	applier, err := scene.NewApplier(root, views, sc)
	if err != nil {
		return nil, fmt.Errorf("creating scene: %w", err)
	}

	d := &Desktop{
		Config:  cfg,
		Loop:    l,
		Txn:     txn,
		Root:    root,
		Views:   views,
		Scene:   applier,
		arrange: txn.OnBeforeCommit(root.Arrange),
	}
	for _, name := range cfg.Workspaces {
		root.CreateWorkspace(name)
	}
	if len(cfg.Workspaces) == 0 {
		root.CreateWorkspace("1")
	}
	logrus.WithFields(logrus.Fields{
		"timeout":    cfg.TxnTimeout(),
		"workspaces": len(root.Pending.Workspaces),
	}).Debugln("Desktop created")
	return d, nil
}

func (d *Desktop) Destroy() {
	d.arrange.Cancel()
	d.Scene.Destroy()
	d.Views.Destroy()
	d.Root.Destroy()
	d.Txn.Destroy()
}

// AddOutput registers an output, applying its config overrides
func (d *Desktop) AddOutput(name string, mode tree.Mode, backend tree.OutputBackend) *tree.Output {
	settings, ok := d.Config.Output(name)
	if ok && settings.Width > 0 && settings.Height > 0 {
		mode.Width = settings.Width
		mode.Height = settings.Height
	}
	o := d.Root.AddOutput(name, mode, backend)
	if !ok {
		return o
	}
	if settings.X != 0 || settings.Y != 0 {
		o.SetPosition(settings.X, settings.Y)
	}
	if settings.Disabled {
		o.SetEnabled(false)
	}
	return o
}

// Map creates the window for a newly mapped client and tiles it on the
// active workspace
func (d *Desktop) Map(client view.Client, ack view.Acknowledger) *view.View {
	v := d.Views.NewView(client, ack)
	ws := d.Root.ActiveWorkspace()
	if ws == nil {
		ws = d.Workspace(d.NextWorkspaceName())
		d.Root.SwitchWorkspace(ws)
	}
	ws.PlaceWindow(v.Window())
	logrus.WithFields(logrus.Fields{
		"window": v.Window().String(),
		"app_id": client.AppID(),
	}).Infoln("Window mapped")
	return v
}

// Workspace returns the named workspace, creating it if needed
func (d *Desktop) Workspace(name string) *tree.Workspace {
	if ws := d.Root.WorkspaceByName(name); ws != nil {
		return ws
	}
	return d.Root.CreateWorkspace(name)
}

// NextWorkspaceName returns the lowest number not used as a workspace name
func (d *Desktop) NextWorkspaceName() string {
	for i := 1; ; i++ {
		name := strconv.Itoa(i)
		if d.Root.WorkspaceByName(name) == nil {
			return name
		}
	}
}

// FocusedView returns the view of the focused window
func (d *Desktop) FocusedView() (*view.View, bool) {
	return d.Views.ViewOf(d.Root.FocusedWindow())
}
