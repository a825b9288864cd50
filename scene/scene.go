// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package scene pushes applied layout state to whatever renders it
package scene

import (
	"cmp"
	"errors"
	"slices"

	"github.com/mstarongithub/wayward/transaction"
	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/view"
	"github.com/sirupsen/logrus"
)

var ErrMissingCollaborator = errors.New("scene applier needs a tree, a view bridge and a scene")

type Layer int

const (
	LayerTiling = Layer(iota)
	LayerFloating
	LayerFullscreen
)

// Placement is where and how a window is drawn
type Placement struct {
	ID      tree.ID  `json:"id"`
	AppID   string   `json:"app_id"`
	Box     tree.Box `json:"box"`
	Surface tree.Box `json:"surface"`
	Visible bool     `json:"visible"`
	Layer   Layer    `json:"layer"`
}

// Scene is the renderer side. Only ever fed current state.
type Scene interface {
	Place(p Placement)
	Remove(id tree.ID)
}

// Applier copies the current state of every view into the scene each time a
// transaction applies
type Applier struct {
	root   *tree.Root
	bridge *view.Bridge
	scene  Scene
	sub    *transaction.Subscription
}

// NewApplier subscribes to apply. Create it after the view bridge so surfaces
// are already centered when the scene is updated.
func NewApplier(root *tree.Root, bridge *view.Bridge, scene Scene) (*Applier, error) {
	if root == nil || bridge == nil || scene == nil {
		return nil, ErrMissingCollaborator
	}
	a := &Applier{
		root:   root,
		bridge: bridge,
		scene:  scene,
	}
	a.sub = root.TransactionManager().OnApply(a.handleApply)
	root.OnFree(a.handleFree)
	return a, nil
}

func (a *Applier) Destroy() {
	a.sub.Cancel()
}

// Sync pushes every view to the scene
func (a *Applier) Sync() {
	for _, v := range a.bridge.Views() {
		a.scene.Place(placementOf(v))
	}
}

func (a *Applier) handleApply() {
	// Visibility of windows outside the transaction can change too, when
	// the active workspace or a fullscreen window does
	a.Sync()
}

func (a *Applier) handleFree(n *tree.Node) {
	if n.Kind() != tree.KindWindow {
		return
	}
	logrus.WithField("node", n.String()).Debugln("Removing window from scene")
	a.scene.Remove(n.ID())
}

func placementOf(v *view.View) Placement {
	w := v.Window()
	layer := LayerTiling
	switch {
	case w.Current.Fullscreen:
		layer = LayerFullscreen
	case w.Current.Floating:
		layer = LayerFloating
	}
	return Placement{
		ID:      w.ID(),
		AppID:   v.AppID(),
		Box:     w.Current.Box,
		Surface: v.SurfaceBox,
		Visible: w.IsVisible(tree.Current),
		Layer:   layer,
	}
}

// Graph is an in memory scene, used headless and in tests
type Graph struct {
	placements map[tree.ID]Placement
	updates    int
}

func NewGraph() *Graph {
	return &Graph{placements: make(map[tree.ID]Placement)}
}

func (g *Graph) Place(p Placement) {
	if old, ok := g.placements[p.ID]; ok && old == p {
		return
	}
	g.placements[p.ID] = p
	g.updates++
}

func (g *Graph) Remove(id tree.ID) {
	if _, ok := g.placements[id]; !ok {
		return
	}
	delete(g.placements, id)
	g.updates++
}

func (g *Graph) Placement(id tree.ID) (Placement, bool) {
	p, ok := g.placements[id]
	return p, ok
}

// Updates counts the changes the graph received
func (g *Graph) Updates() int {
	return g.updates
}

// Stack returns the visible placements bottom to top
func (g *Graph) Stack() []Placement {
	var stack []Placement
	for _, p := range g.placements {
		if p.Visible {
			stack = append(stack, p)
		}
	}
	slices.SortFunc(stack, func(a, b Placement) int {
		if a.Layer != b.Layer {
			return cmp.Compare(a.Layer, b.Layer)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return stack
}
