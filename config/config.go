// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mstarongithub/wayward/tree"
	"github.com/sirupsen/logrus"
)

type StartType int

const (
	// Tells wayward to start a repl in parallel for interacting with it
	START_REPL = StartType(iota)
	// Tells wayward to execute a specific command on startup
	START_SINGLE_COMMAND
	// Tells wayward to start without any specific targets
	// Note: Good luck interacting with it :3
	START_NONE
)

const DefaultTxnTimeoutMs = 200

var ErrInvalid = errors.New("invalid config")

// Output overrides what the backend picks for a display
type Output struct {
	Name     string `toml:"name" yaml:"name"`
	Disabled bool   `toml:"disabled" yaml:"disabled"`
	// Position in the layout, auto placed when both are zero
	X float64 `toml:"x" yaml:"x"`
	Y float64 `toml:"y" yaml:"y"`
	// Mode to use, the backend's preferred one when zero
	Width  int `toml:"width" yaml:"width"`
	Height int `toml:"height" yaml:"height"`
}

type Debug struct {
	// Apply transactions without waiting for clients
	NoAtomic bool `envconfig:"NOATOMIC" toml:"noatomic" yaml:"noatomic"`
	// Let every transaction run into its timeout
	TxnWait bool `envconfig:"TXN_WAIT" toml:"txn_wait" yaml:"txn_wait"`
	// Log how long transactions waited for clients
	TxnTimings bool `envconfig:"TXN_TIMINGS" toml:"txn_timings" yaml:"txn_timings"`
}

type Config struct {
	StartType StartType `envconfig:"START_TYPE" toml:"start_type,omitempty" yaml:"start_type,omitempty"`
	// What command to execute on start. Only matters if StartType is set to START_SINGLE_COMMAND
	StartCommand *string `envconfig:"START_COMMAND" toml:"start_command,omitempty" yaml:"start_command,omitempty"`

	// How long a transaction waits for clients before applying anyway
	TxnTimeoutMs  int     `envconfig:"TXN_TIMEOUT_MS" toml:"txn_timeout_ms" yaml:"txn_timeout_ms"`
	GapsInner     float64 `envconfig:"GAPS_INNER" toml:"gaps_inner" yaml:"gaps_inner"`
	DefaultLayout string  `envconfig:"DEFAULT_LAYOUT" toml:"default_layout" yaml:"default_layout"`
	// Workspaces created on startup, the first one is focused
	Workspaces []string `envconfig:"WORKSPACES" toml:"workspaces" yaml:"workspaces"`
	Outputs    []Output `ignored:"true" toml:"outputs" yaml:"outputs"`

	IPCSocket string `envconfig:"IPC_SOCKET" toml:"ipc_socket" yaml:"ipc_socket"`
	// Address of the debug http server, disabled when empty
	DebugAddr string `envconfig:"DEBUG_ADDR" toml:"debug_addr" yaml:"debug_addr"`
	LogLevel  string `envconfig:"LOG_LEVEL" toml:"log_level" yaml:"log_level"`

	Debug Debug `envconfig:"DEBUG" toml:"debug" yaml:"debug"`
}

func Default() *Config {
	return &Config{
		StartType:     START_REPL,
		TxnTimeoutMs:  DefaultTxnTimeoutMs,
		DefaultLayout: "split",
		Workspaces:    []string{"1"},
		LogLevel:      "info",
	}
}

func (c *Config) Validate() error {
	if c.TxnTimeoutMs <= 0 {
		return fmt.Errorf("%w: txn_timeout_ms must be positive, got %d", ErrInvalid, c.TxnTimeoutMs)
	}
	if c.GapsInner < 0 {
		return fmt.Errorf("%w: gaps_inner must not be negative", ErrInvalid)
	}
	if _, err := tree.ParseLayout(c.DefaultLayout); err != nil {
		return fmt.Errorf("%w: default_layout: %w", ErrInvalid, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	if c.StartType == START_SINGLE_COMMAND && (c.StartCommand == nil || *c.StartCommand == "") {
		return fmt.Errorf("%w: start_command is required for start_type %d", ErrInvalid, START_SINGLE_COMMAND)
	}
	for i, o := range c.Outputs {
		if o.Name == "" {
			return fmt.Errorf("%w: outputs[%d] has no name", ErrInvalid, i)
		}
		if o.Width < 0 || o.Height < 0 {
			return fmt.Errorf("%w: outputs[%d] has a negative mode", ErrInvalid, i)
		}
	}
	return nil
}

func (c *Config) TxnTimeout() time.Duration {
	return time.Duration(c.TxnTimeoutMs) * time.Millisecond
}

// Layout returns the parsed default layout, split if it doesn't parse
func (c *Config) Layout() tree.Layout {
	layout, _ := tree.ParseLayout(c.DefaultLayout)
	return layout
}

// Output returns the settings for the named output
func (c *Config) Output(name string) (Output, bool) {
	for _, o := range c.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return Output{}, false
}
