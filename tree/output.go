// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package tree

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type Mode struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	// Refresh rate in millihertz
	Refresh int `json:"refresh"`
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%d", m.Width, m.Height, m.Refresh)
}

// OutputBackend applies enablement and mode changes to the actual display.
// It is called while a transaction commits, a failure keeps the previously
// committed values.
type OutputBackend interface {
	CommitState(enabled bool, mode Mode) error
}

type OutputState struct {
	Enabled bool
	Mode    Mode
	// Position and size in layout coordinates
	Box Box
	// Area left after layer shell reservations, relative to the output
	UsableArea Box
}

type Output struct {
	Node

	Name    string
	Backend OutputBackend

	Pending   OutputState
	Committed OutputState
	Current   OutputState

	// Placed right of the other outputs by arrange unless a position was set
	autoPlace bool
	// Usable area was explicitly reserved
	reserved bool
}

// AddOutput registers a new, enabled output
func (r *Root) AddOutput(name string, mode Mode, backend OutputBackend) *Output {
	o := &Output{
		Name:      name,
		Backend:   backend,
		autoPlace: true,
	}
	r.init(&o.Node, KindOutput, o)
	o.Pending.Enabled = true
	o.Pending.Mode = mode
	// The backend enabled it already, the first commit has nothing to push
	o.Committed.Enabled = true
	o.Committed.Mode = mode
	r.allOutputs = append(r.allOutputs, o)
	if r.Pending.ActiveOutput == nil {
		r.Pending.ActiveOutput = o
		r.SetDirty()
	}
	o.SetDirty()
	logrus.WithFields(logrus.Fields{
		"output": name,
		"mode":   mode.String(),
	}).Debugln("Output added")
	return o
}

func (o *Output) State(set StateSet) *OutputState {
	switch set {
	case Committed:
		return &o.Committed
	case Current:
		return &o.Current
	default:
		return &o.Pending
	}
}

func (o *Output) SetEnabled(enabled bool) {
	if o.Pending.Enabled == enabled {
		return
	}
	o.Pending.Enabled = enabled
	o.SetDirty()
	if !enabled {
		o.evacuate()
	}
}

func (o *Output) SetMode(mode Mode) {
	if o.Pending.Mode == mode {
		return
	}
	o.Pending.Mode = mode
	o.SetDirty()
}

// SetPosition pins the output in the layout instead of auto placing it
func (o *Output) SetPosition(x, y float64) {
	o.autoPlace = false
	if o.Pending.Box.X == x && o.Pending.Box.Y == y {
		return
	}
	o.Pending.Box.X = x
	o.Pending.Box.Y = y
	o.SetDirty()
}

// SetUsableArea records the area left after exclusive zones, relative to the output
func (o *Output) SetUsableArea(area Box) {
	o.reserved = true
	if o.Pending.UsableArea == area {
		return
	}
	o.Pending.UsableArea = area
	o.SetDirty()
}

// UsableBox is the pending usable area in layout coordinates
func (o *Output) UsableBox() Box {
	area := o.Pending.UsableArea
	return Box{
		X:      o.Pending.Box.X + area.X,
		Y:      o.Pending.Box.Y + area.Y,
		Width:  area.Width,
		Height: area.Height,
	}
}

// BeginDestroy removes the output from the layout. Columns on it move to another output.
func (o *Output) BeginDestroy() {
	if o.destroying {
		return
	}
	o.evacuate()
	o.beginDestroy()
	r := o.root
	if r.Pending.ActiveOutput == o {
		r.Pending.ActiveOutput = nil
		r.SetDirty()
	}
}

// Moves every column placed on this output to the first other enabled output
func (o *Output) evacuate() {
	r := o.root
	var target *Output
	for _, other := range r.Outputs() {
		if other != o {
			target = other
			break
		}
	}
	for _, ws := range r.Pending.Workspaces {
		for _, c := range ws.Pending.Columns {
			if c.Pending.Output == o {
				c.Pending.Output = target
				c.SetDirty()
			}
		}
	}
	if r.Pending.ActiveOutput == o && target != nil {
		r.Pending.ActiveOutput = target
		r.SetDirty()
	}
}

func (o *Output) snapshot() {
	if o.Backend != nil && (o.Pending.Enabled != o.Committed.Enabled || o.Pending.Mode != o.Committed.Mode) {
		if err := o.Backend.CommitState(o.Pending.Enabled, o.Pending.Mode); err != nil {
			logrus.WithError(err).WithField("output", o.Name).Errorln("Output rejected new state")
			o.Pending.Enabled = o.Committed.Enabled
			o.Pending.Mode = o.Committed.Mode
			// Layout was arranged for the rejected state, redo it
			o.root.txn.EnsureQueued()
		}
	}
	o.Committed = o.Pending
}

func (o *Output) applyCommitted() {
	o.Current = o.Committed
}

func (o *Output) free() {
	r := o.root
	for i, other := range r.allOutputs {
		if other == o {
			r.allOutputs = append(r.allOutputs[:i], r.allOutputs[i+1:]...)
			break
		}
	}
}
