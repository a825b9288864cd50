// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mstarongithub/wayward/config"
	"github.com/mstarongithub/wayward/desktop"
	"github.com/mstarongithub/wayward/loop"
	"github.com/mstarongithub/wayward/scene"
	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/util/supervise"
	"github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"
)

const headlessOutput = "HEADLESS-1"

var headlessMode = tree.Mode{Width: 1920, Height: 1080, Refresh: 60000}

// headlessMain runs the layout engine without any display. Windows come from
// "spawn" in the repl and only ever exist as simulated clients.
func headlessMain(conf *config.Config) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	l := loop.New()
	graph := scene.NewGraph()
	d, err := desktop.New(conf, l, graph)
	if err != nil {
		logrus.WithError(err).Fatal("creating desktop")
	}
	defer d.Destroy()
	d.AddOutput(headlessOutput, headlessMode, nil)
	c := newCompositor(conf, d)
	defer c.Close()

	loopService := supervise.NewServiceFunc("loop", func(ctx context.Context) error {
		// A closed loop can't be restarted, take everything down with it
		if err := l.Run(ctx); ctx.Err() == nil {
			logrus.WithError(err).Errorln("Event loop stopped")
		}
		return suture.ErrTerminateSupervisorTree
	})

	logrus.WithFields(logrus.Fields{
		"output": headlessOutput,
		"mode":   headlessMode.String(),
		"socket": conf.IPCSocket,
	}).Infoln("Running headless")
	serve(ctx, c.supervisor(cancel, loopService))
}
