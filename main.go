// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/mstarongithub/wayward/config"
	"github.com/sirupsen/logrus"
)

var (
	configPath *string = flag.String("config", "", "Path to the config file. Searched for in the xdg config dirs if not set")
	toolMode   *bool   = flag.Bool("tool", false, "Start as a tool instead of a compositor")
	help       *bool   = flag.Bool("help", false, "Show the help message")
	headless   *bool   = flag.Bool("headless", false, "Run the layout engine without a display, driven by simulated clients")
	debug      *bool   = flag.Bool("debug", false, "Log at debug level, overrides log_level")
)

func main() {
	flag.Parse()

	// A missing .env is normal, anything else isn't
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warnln("Failed to read .env")
	}

	conf, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("loading config")
	}
	setupLogging(conf)

	switch {
	case *toolMode:
		utilMain(conf)
	case *help:
		helpMessage()
	case *headless:
		headlessMain(conf)
	default:
		wlMain(conf)
	}
}

func setupLogging(conf *config.Config) {
	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		// Validated by config.Load already
		level = logrus.InfoLevel
	}
	if *debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func helpMessage() {
	fmt.Println("---- Help message for wayward ----")
	fmt.Println("\nwayward is a tiling wayland compositor")
	fmt.Println("\nFlags:")
	fmt.Println("\t-config: Path to the config file. Default is wayward/config.toml in the xdg config dirs")
	fmt.Println("\t-tool: Start as a tool instead of a compositor. Use with -help for the tool flags")
	fmt.Println("\t-headless: Run without a display. Windows are spawned from the repl")
	fmt.Println("\t-debug: Log at debug level")
	fmt.Println("\t-help: Show this help message")
	fmt.Println("\nEnvironment variables prefixed with " + config.EnvPrefix + "_ override the config file, e.g. " + config.EnvPrefix + "_TXN_TIMEOUT_MS")
}
