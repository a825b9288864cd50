// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package view connects windows of the layout tree with the clients drawing them.
// Committed geometry is sent out as configures, the transaction waits on a
// commit lock per visible view until the client commits a matching buffer.
package view

import (
	"math"

	"github.com/mstarongithub/wayward/transaction"
	"github.com/mstarongithub/wayward/tree"
	"github.com/sirupsen/logrus"
)

// Client is the protocol side of a view
type Client interface {
	// Configure asks the client to take on box. Returns the serial of the
	// configure, or 0 when the protocol has none.
	Configure(box tree.Box) uint32
	// Close asks the client to close
	Close()
	AppID() string
	Title() string
}

// Commit describes a surface commit of a client
type Commit struct {
	// Serial of the last configure the client acknowledged
	Serial uint32
	// Geometry of the committed buffer. Position is only meaningful for
	// clients placing themselves.
	Geometry tree.Box
}

// Acknowledger decides whether a commit answers the last configure
type Acknowledger interface {
	Expect(serial uint32, box tree.Box)
	Matches(c Commit) bool
	// Position aware clients get configured when only their position changes
	PositionAware() bool
}

// SerialAck matches commits by configure serial
type SerialAck struct {
	expected uint32
}

func (a *SerialAck) Expect(serial uint32, _ tree.Box) {
	a.expected = serial
}

func (a *SerialAck) Matches(c Commit) bool {
	return a.expected != 0 && c.Serial == a.expected
}

func (a *SerialAck) PositionAware() bool {
	return false
}

// GeometryAck matches commits by the geometry the client ends up with, for
// protocols whose configures carry no serial
type GeometryAck struct {
	// Compare the position as well
	Positioned bool

	expected tree.Box
}

func (a *GeometryAck) Expect(_ uint32, box tree.Box) {
	a.expected = box
}

func (a *GeometryAck) Matches(c Commit) bool {
	ex, ey, ew, eh := a.expected.Truncated()
	cx, cy, cw, ch := c.Geometry.Truncated()
	if ew != cw || eh != ch {
		return false
	}
	return !a.Positioned || (ex == cx && ey == cy)
}

func (a *GeometryAck) PositionAware() bool {
	return a.Positioned
}

// View is the content of a window
type View struct {
	client Client
	ack    Acknowledger
	window *tree.Window

	lock        *transaction.CommitLock
	configuring bool
	configures  int

	// Size of the last buffer the client committed
	Geometry tree.Box
	// Where the surface sits in layout coordinates, updated on apply
	SurfaceBox tree.Box
}

func (v *View) AppID() string {
	return v.client.AppID()
}

func (v *View) Title() string {
	return v.client.Title()
}

func (v *View) Window() *tree.Window {
	return v.window
}

func (v *View) Client() Client {
	return v.client
}

// Configuring reports whether a configure was sent and not applied yet
func (v *View) Configuring() bool {
	return v.configuring
}

// Locked reports whether the view holds up the transaction in flight
func (v *View) Locked() bool {
	return v.lock != nil
}

// Configures returns the number of configures sent to the client
func (v *View) Configures() int {
	return v.configures
}

// HandleCommit processes a surface commit. A commit matching the last
// configure releases the view's commit lock.
func (v *View) HandleCommit(c Commit) {
	v.Geometry = tree.Box{Width: c.Geometry.Width, Height: c.Geometry.Height}
	if v.lock != nil && v.ack.Matches(c) {
		logrus.WithFields(logrus.Fields{
			"window": v.window.String(),
			"serial": c.Serial,
		}).Debugln("View is ready")
		v.lock.Release()
		v.lock = nil
		return
	}
	if !v.configuring {
		// The client resized on its own
		v.center()
	}
}

// Unmap tears the window down. The view stays around until the window is freed.
func (v *View) Unmap() {
	v.lock.Release()
	v.lock = nil
	v.window.BeginDestroy()
}

func (v *View) configure(box tree.Box, lock *transaction.CommitLock) {
	serial := v.client.Configure(box)
	v.ack.Expect(serial, box)
	v.lock.Release()
	v.lock = lock
	v.configuring = true
	v.configures++
	logrus.WithFields(logrus.Fields{
		"window": v.window.String(),
		"serial": serial,
		"locked": lock != nil,
	}).Debugln("Configured view")
}

// Places the surface in the middle of the window box when the client did not
// take the whole box, like fullscreen clients keeping their own size
func (v *View) center() {
	box := v.window.Current.Box
	if v.Geometry.Empty() {
		v.SurfaceBox = box
		return
	}
	v.SurfaceBox = tree.Box{
		X:      box.X + math.Max(0, math.Floor((box.Width-v.Geometry.Width)/2)),
		Y:      box.Y + math.Max(0, math.Floor((box.Height-v.Geometry.Height)/2)),
		Width:  v.Geometry.Width,
		Height: v.Geometry.Height,
	}
}
