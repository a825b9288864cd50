// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding the file start with this, e.g. WAYWARD_TXN_TIMEOUT_MS
const EnvPrefix = "WAYWARD"

var ErrUnsupportedFormat = errors.New("unsupported config format")

// Looked up in the xdg config dirs, in this order
var searchPaths = []string{
	"wayward/config.toml",
	"wayward/config.yaml",
	"wayward/config.yml",
}

// Find returns the first config file in the xdg config dirs, or "" if there is none
func Find() string {
	for _, rel := range searchPaths {
		if path, err := xdg.SearchConfigFile(rel); err == nil {
			return path
		}
	}
	return ""
}

// Load builds the config from defaults, the file at path (searched for when
// empty) and finally the environment
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = Find()
	}
	if path != "" {
		if err := cfg.ReadFile(path); err != nil {
			return nil, err
		}
		logrus.WithField("path", path).Debugln("Loaded config file")
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if cfg.IPCSocket == "" {
		socket, err := xdg.RuntimeFile("wayward/ipc.sock")
		if err != nil {
			return nil, fmt.Errorf("locating ipc socket: %w", err)
		}
		cfg.IPCSocket = socket
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFile merges the file at path into c. The format is picked by extension.
func (c *Config) ReadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	switch filepath.Ext(path) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
