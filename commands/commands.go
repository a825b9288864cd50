// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package commands parses and runs compositor commands such as
// "layout stacked" or "move workspace 2". Commands only ever change the
// pending state of the tree, the transaction manager takes it from there.
package commands

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mstarongithub/wayward/desktop"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoFocus         = errors.New("no window is focused")
)

type handler func(r *Runner, args []string) error

var handlers = map[string]handler{
	"layout":     (*Runner).layout,
	"fullscreen": (*Runner).fullscreen,
	"floating":   (*Runner).floating,
	"pin":        (*Runner).pin,
	"workspace":  (*Runner).workspace,
	"focus":      (*Runner).focus,
	"move":       (*Runner).move,
	"resize":     (*Runner).resize,
	"kill":       (*Runner).kill,
	"exec":       (*Runner).exec,
	"output":     (*Runner).output,
	"gaps":       (*Runner).gaps,
}

type Runner struct {
	desktop *desktop.Desktop
	// Exec starts a program for the exec command. Runs it through sh by default.
	Exec func(command string) error
}

func New(d *desktop.Desktop) *Runner {
	return &Runner{
		desktop: d,
		Exec:    shellExec,
	}
}

// Names returns the names of all known commands
func Names() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	return names
}

// Run executes line, which may hold several commands separated by ';'.
// Commands only mark nodes dirty, everything run within one loop iteration
// is committed by the same transaction. Every command is attempted, the
// errors of the failing ones are joined.
func (r *Runner) Run(line string) error {
	var errs []error
	for _, command := range strings.Split(line, ";") {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			continue
		}
		if err := r.run(fields[0], fields[1:]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.TrimSpace(command), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) run(name string, args []string) error {
	h, ok := handlers[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
	logrus.WithFields(logrus.Fields{
		"command": name,
		"args":    args,
	}).Debugln("Running command")
	return h(r, args)
}

func shellExec(command string) error {
	cmd := exec.Command("/bin/sh", "-c", command)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %q: %w", command, err)
	}
	go func() {
		err := cmd.Wait()
		if exiterr, ok := err.(*exec.ExitError); ok {
			logrus.WithError(err).WithFields(logrus.Fields{
				"exit-code": exiterr.ExitCode(),
				"command":   command,
			}).Warningln("Bad command completion")
		}
	}()
	return nil
}
