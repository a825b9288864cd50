// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package view

import (
	"time"

	"github.com/mstarongithub/wayward/loop"
	"github.com/mstarongithub/wayward/tree"
	"github.com/sirupsen/logrus"
)

// SimulatedClient stands in for a real client when running headless.
// It acknowledges every configure by serial after Latency, unless wedged.
type SimulatedClient struct {
	sched loop.Scheduler
	view  *View

	Name    string
	Latency time.Duration
	// Never answers configures
	Wedged bool
	// Keeps this size instead of the configured one when set
	FixedSize *tree.Box

	serial uint32
	closed bool
}

func NewSimulatedClient(sched loop.Scheduler, name string, latency time.Duration) *SimulatedClient {
	return &SimulatedClient{
		sched:   sched,
		Name:    name,
		Latency: latency,
	}
}

// Bind attaches the client to the view it draws
func (c *SimulatedClient) Bind(v *View) {
	c.view = v
}

func (c *SimulatedClient) AppID() string {
	return c.Name
}

func (c *SimulatedClient) Title() string {
	return c.Name
}

// Serial returns the serial of the last configure received
func (c *SimulatedClient) Serial() uint32 {
	return c.serial
}

func (c *SimulatedClient) Configure(box tree.Box) uint32 {
	c.serial++
	if c.Wedged || c.closed {
		return c.serial
	}
	serial := c.serial
	geometry := box
	if c.FixedSize != nil {
		geometry.Width = c.FixedSize.Width
		geometry.Height = c.FixedSize.Height
	}
	_, err := c.sched.AfterFunc(c.Latency, func() {
		if c.closed || c.view == nil {
			return
		}
		c.view.HandleCommit(Commit{Serial: serial, Geometry: geometry})
	})
	if err != nil {
		logrus.WithError(err).WithField("client", c.Name).Warnln("Simulated client can't answer")
	}
	return serial
}

// Close unmaps the view on the next loop iteration, like a client
// destroying its toplevel
func (c *SimulatedClient) Close() {
	if c.closed {
		return
	}
	c.closed = true
	err := c.sched.Post(func() {
		if c.view != nil {
			c.view.Unmap()
		}
	})
	if err != nil {
		logrus.WithError(err).WithField("client", c.Name).Warnln("Simulated client can't close")
	}
}
