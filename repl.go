// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"os"

	"github.com/mstarongithub/wayward/commands"
	"github.com/mstarongithub/wayward/desktop"
	"github.com/mstarongithub/wayward/repl"
	"github.com/mstarongithub/wayward/util/wrappers"
	"github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"
)

// replService reads compositor commands from stdin
type replService struct {
	desktop *desktop.Desktop
	runner  *commands.Runner
	// Called when the repl is told to quit
	quit func()
}

func (s *replService) String() string {
	return "repl"
}

func (s *replService) Serve(ctx context.Context) error {
	// Give repl some wrappers around stdin and stdout so that it closes those instead of stdin & stdout themselves
	in := wrappers.NewReaderWrapper(os.Stdin)
	commandRepl := repl.NewRepl(in, wrappers.NewWriterWrapper(os.Stdout))
	commandRepl.Prompt = "wayward> "
	logrus.Debugln("Starting repl")

	done := make(chan error, 1)
	go func() {
		done <- commandRepl.Run(repl.NewHandler(ctx, s.desktop, s.runner, s.quit))
	}()

	select {
	case err := <-done:
		if err != nil {
			logrus.WithError(err).Warnln("Repl stopped")
		} else {
			logrus.Infoln("Repl input ended")
		}
		// Stdin is gone or the user quit, either way there is nothing to restart
		return suture.ErrDoNotRestart
	case <-ctx.Done():
		// A read from stdin can't be interrupted, the goroutine ends with the process
		in.Close()
		return ctx.Err()
	}
}
