// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"github.com/mstarongithub/wayward/scene"
	"github.com/mstarongithub/wayward/tree"
	"github.com/sirupsen/logrus"
)

// Hidden windows are parked here, far outside any output
const hiddenOffset = -1 << 20

// wlScene moves the scene nodes of toplevels to where the applied state
// puts them. Stacking is redone once per dispatch, not per placement.
type wlScene struct {
	server *Server
	graph  *scene.Graph
	// Graph updates at the last restack
	stacked int
}

func newWLScene(server *Server) *wlScene {
	return &wlScene{
		server: server,
		graph:  scene.NewGraph(),
	}
}

func (s *wlScene) Place(p scene.Placement) {
	s.graph.Place(p)
	t := s.toplevel(p.ID)
	if t == nil {
		return
	}
	if !p.Visible {
		t.node().SetPosition(hiddenOffset, hiddenOffset)
		return
	}
	// The scene tree starts at the buffer origin, the geometry may not
	geo := t.surface.Geometry()
	t.node().SetPosition(p.Surface.X-float64(geo.X), p.Surface.Y-float64(geo.Y))
}

func (s *wlScene) Remove(id tree.ID) {
	// The scene nodes go away with the xdg surface
	s.graph.Remove(id)
}

// restack raises visible windows bottom to top: tiling, floating, fullscreen
func (s *wlScene) restack() {
	if s.graph.Updates() == s.stacked {
		return
	}
	s.stacked = s.graph.Updates()
	stack := s.graph.Stack()
	for _, p := range stack {
		if t := s.toplevel(p.ID); t != nil {
			t.node().RaiseToTop()
		}
	}
	logrus.WithField("visible", len(stack)).Debugln("Restacked scene")
}

func (s *wlScene) toplevel(id tree.ID) *toplevel {
	v, ok := s.server.desktop.Views.View(id)
	if !ok {
		return nil
	}
	for _, t := range s.server.toplevels {
		if t.view == v {
			return t
		}
	}
	return nil
}
