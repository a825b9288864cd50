// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"

	"github.com/mstarongithub/wayward/commands"
	"github.com/mstarongithub/wayward/config"
	"github.com/mstarongithub/wayward/desktop"
	"github.com/mstarongithub/wayward/ipc"
	"github.com/mstarongithub/wayward/util/supervise"
	"github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"
)

// compositor bundles what both the wlroots and the headless mode run
type compositor struct {
	conf    *config.Config
	desktop *desktop.Desktop
	runner  *commands.Runner
	events  *ipc.Events
}

// newCompositor has to run on the desktop's loop, before it dispatches anything
func newCompositor(conf *config.Config, d *desktop.Desktop) *compositor {
	return &compositor{
		conf:    conf,
		desktop: d,
		runner:  commands.New(d),
		events:  ipc.NewEvents(d.Root),
	}
}

// supervisor builds the tree of side services. quit stops the compositor.
func (c *compositor) supervisor(quit func(), extra ...supervise.Service) *suture.Supervisor {
	super := supervise.New("wayward")
	for _, service := range extra {
		supervise.Add(super, service)
	}
	supervise.Add(super, ipc.NewServer(c.desktop, c.runner, c.events, c.conf.IPCSocket))
	if c.conf.DebugAddr != "" {
		supervise.Add(super, ipc.NewDebugServer(c.desktop, c.conf.DebugAddr))
	}
	switch c.conf.StartType {
	case config.START_REPL:
		supervise.Add(super, &replService{
			desktop: c.desktop,
			runner:  c.runner,
			quit:    quit,
		})
	case config.START_SINGLE_COMMAND:
		supervise.Add(super, supervise.NewServiceFunc("start-command", c.runStartCommand))
	case config.START_NONE:
	}
	return super
}

// Runs the configured command once, as if it was bound to a key
func (c *compositor) runStartCommand(ctx context.Context) error {
	command := *c.conf.StartCommand
	var err error
	if callErr := c.desktop.Loop.Call(ctx, func() { err = c.runner.Run(command) }); callErr != nil {
		return callErr
	}
	if err != nil {
		logrus.WithError(err).WithField("command", command).Errorln("Start command failed")
	}
	return suture.ErrDoNotRestart
}

// serve runs the supervisor until ctx is done and logs how it ended
func serve(ctx context.Context, super *suture.Supervisor) {
	err := super.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Errorln("Services stopped")
		return
	}
	logrus.Debugln("Services stopped")
}

func (c *compositor) Close() {
	c.events.Close()
}
