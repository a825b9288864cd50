// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"

	"github.com/mstarongithub/wayward/config"
	"github.com/sirupsen/logrus"
	"github.com/swaywm/go-wlroots/wlroots"
)

func wlMain(conf *config.Config) {
	importance := wlroots.LogImportanceError
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		importance = wlroots.LogImportanceDebug
	}
	wlroots.OnLog(importance, func(importance wlroots.LogImportance, msg string) {
		switch importance {
		case wlroots.LogImportanceDebug:
			logrus.Debugln(msg)
		case wlroots.LogImportanceInfo:
			logrus.Infoln(msg)
		case wlroots.LogImportanceError:
			logrus.Errorln(msg)
		case wlroots.LogImportanceSilent:
			return
		}
	})

	server, err := NewServer(conf)
	if err != nil {
		logrus.WithError(err).Fatal("initializing server")
	}
	if err = server.Start(); err != nil {
		logrus.WithError(err).Fatal("starting server")
	}

	// Side services only talk to the desktop through its loop, which the
	// wayland event loop dispatches
	ctx, cancel := context.WithCancel(context.Background())
	services := make(chan struct{})
	go func() {
		defer close(services)
		serve(ctx, server.comp.supervisor(server.Stop))
	}()

	// start the wayland event loop
	err = server.Run()
	cancel()
	<-services
	if err != nil {
		logrus.WithError(err).Fatal("running server")
	}
}
