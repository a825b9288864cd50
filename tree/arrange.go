// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package tree

import (
	"math"
)

// Arrange recomputes the pending geometry of the whole tree.
// Only nodes whose pending geometry actually changes get marked dirty.
func (r *Root) Arrange() {
	ArrangeRoot(r)
}

// ArrangeNode arranges the subtree below n
func ArrangeNode(n *Node) {
	switch e := n.element.(type) {
	case *Root:
		ArrangeRoot(e)
	case *Output:
		ArrangeOutput(e)
	case *Workspace:
		ArrangeWorkspace(e)
	case *Column:
		ArrangeColumn(e)
	case *Window:
		ArrangeWindow(e)
	}
}

func ArrangeRoot(r *Root) {
	var box Box
	first := true
	for _, o := range r.Outputs() {
		ArrangeOutput(o)
		if first {
			box = o.Pending.Box
			first = false
			continue
		}
		box = union(box, o.Pending.Box)
	}
	if r.Box != box {
		r.Box = box
		r.SetDirty()
	}
	for _, ws := range r.Pending.Workspaces {
		ArrangeWorkspace(ws)
	}
}

// ArrangeOutput sizes the output from its mode. Outputs without an explicit
// position are placed right of the enabled outputs added before them.
func ArrangeOutput(o *Output) {
	if !o.Pending.Enabled || o.destroying {
		return
	}
	box := o.Pending.Box
	if o.autoPlace {
		box.X, box.Y = 0, 0
		for _, other := range o.root.Outputs() {
			if other == o {
				break
			}
			box.X = math.Max(box.X, other.Pending.Box.X+other.Pending.Box.Width)
		}
	}
	box.Width = float64(o.Pending.Mode.Width)
	box.Height = float64(o.Pending.Mode.Height)
	area := o.Pending.UsableArea
	if !o.reserved {
		area = Box{Width: box.Width, Height: box.Height}
	}
	if box == o.Pending.Box && area == o.Pending.UsableArea {
		return
	}
	o.Pending.Box = box
	o.Pending.UsableArea = area
	o.SetDirty()
}

// ArrangeWorkspace lays the workspace out against the active output: tiling
// columns per output, fullscreen windows over their output, floating windows
// clamped and kept inside the workspace.
func ArrangeWorkspace(ws *Workspace) {
	r := ws.root
	output := r.ActiveOutput()
	if output == nil || ws.destroying {
		return
	}
	previous := ws.Pending.Box
	box := output.UsableBox()
	if previous != box || ws.Pending.Output != output {
		ws.Pending.Box = box
		ws.Pending.Output = output
		ws.SetDirty()
	}
	if ws.arranged && previous != box {
		dx, dy := box.X-previous.X, box.Y-previous.Y
		for _, w := range ws.Pending.Floating {
			b := w.Pending.Box
			b.X += dx
			b.Y += dy
			w.setBox(b)
		}
	}
	ws.arranged = true

	for _, c := range ws.Pending.Columns {
		if o := c.Pending.Output; o == nil || !o.Pending.Enabled || o.destroying {
			c.Pending.Output = output
			c.SetDirty()
		}
	}
	for _, o := range r.Outputs() {
		arrangeColumns(ws.ColumnsOn(o), o.UsableBox(), r.Gaps)
	}
	for _, w := range ws.Pending.Floating {
		ArrangeWindow(w)
	}
}

// Distributes the width of area over columns by their width fraction
func arrangeColumns(columns []*Column, area Box, gap float64) {
	if len(columns) == 0 {
		return
	}
	fractions := make([]*float64, len(columns))
	for i, c := range columns {
		fractions[i] = &c.WidthFraction
	}
	normalizeFractions(fractions)
	inner, total := gapSize(gap, area.Width, len(columns), MinSaneWidth)
	available := area.Width - total
	x := area.X
	for i, c := range columns {
		c.ChildTotalWidth = available
		width := math.Round(c.WidthFraction * available)
		if i == len(columns)-1 {
			width = area.X + area.Width - x
		}
		c.setBox(Box{X: x, Y: area.Y, Width: width, Height: area.Height})
		x += width + inner
		ArrangeColumn(c)
	}
}

// ArrangeColumn places the windows of c inside its box. Split columns stack
// windows vertically by height fraction, stacked columns give every window the
// whole box.
func ArrangeColumn(c *Column) {
	box := c.Pending.Box
	children := c.Pending.Children
	if len(children) == 0 {
		return
	}
	if c.Pending.Layout == LayoutStacked {
		for _, w := range children {
			w.ChildTotalHeight = box.Height
			w.setOutput(c.Pending.Output)
			if !w.Pending.Fullscreen {
				w.setBox(box)
			}
			ArrangeWindow(w)
		}
		return
	}

	fractions := make([]*float64, len(children))
	for i, w := range children {
		fractions[i] = &w.HeightFraction
	}
	normalizeFractions(fractions)
	var gap float64
	if ws := c.Pending.Workspace; ws != nil {
		gap = ws.root.Gaps
	}
	inner, total := gapSize(gap, box.Height, len(children), MinSaneHeight)
	available := box.Height - total
	y := box.Y
	for i, w := range children {
		w.ChildTotalHeight = available
		height := math.Round(w.HeightFraction * available)
		if i == len(children)-1 {
			height = box.Y + box.Height - y
		}
		w.setOutput(c.Pending.Output)
		if !w.Pending.Fullscreen {
			w.setBox(Box{X: box.X, Y: y, Width: box.Width, Height: height})
		}
		y += height + inner
		ArrangeWindow(w)
	}
}

// ArrangeWindow applies the per window rules on top of what the column
// assigned: fullscreen windows cover their output, floating windows keep their
// own geometry within sane bounds.
func ArrangeWindow(w *Window) {
	if w.destroying || w.Pending.Workspace == nil {
		return
	}
	if w.Pending.Floating {
		arrangeFloating(w)
	}
	if w.Pending.Fullscreen {
		if o := w.Pending.Output; o != nil {
			w.setBox(o.Pending.Box)
		}
	}
}

func arrangeFloating(w *Window) {
	ws := w.Pending.Workspace
	b := w.Pending.Box
	b.Width = math.Max(b.Width, MinSaneWidth)
	b.Height = math.Max(b.Height, MinSaneHeight)
	area := ws.Pending.Box
	if !area.Empty() {
		if cx, cy := b.Center(); !area.Contains(cx, cy) {
			b.X = area.X + (area.Width-b.Width)/2
			b.Y = area.Y + (area.Height-b.Height)/2
		}
	}
	w.setBox(b)

	output := ws.Pending.Output
	cx, cy := b.Center()
	for _, o := range ws.root.Outputs() {
		if o.Pending.Box.Contains(cx, cy) {
			output = o
			break
		}
	}
	w.setOutput(output)
}

// Gives members with no fraction yet the average share of the others, then
// scales everything to sum up to one
func normalizeFractions(fractions []*float64) {
	var sum float64
	fresh := 0
	for _, f := range fractions {
		if *f <= 0 {
			fresh++
			continue
		}
		sum += *f
	}
	share := 1.0
	if established := len(fractions) - fresh; established > 0 {
		share = sum / float64(established)
	}
	var total float64
	for _, f := range fractions {
		if *f <= 0 {
			*f = share
		}
		total += *f
	}
	for _, f := range fractions {
		*f /= total
	}
}

// Returns the gap between two members and the space taken by all gaps,
// shrunk so no member ends up below minSize
func gapSize(gap, length float64, count int, minSize float64) (float64, float64) {
	if count <= 1 || gap <= 0 {
		return 0, 0
	}
	total := math.Min(gap*float64(count-1), math.Max(0, length-minSize*float64(count)))
	return math.Floor(total / float64(count-1)), total
}

func union(a, b Box) Box {
	x1 := math.Min(a.X, b.X)
	y1 := math.Min(a.Y, b.Y)
	x2 := math.Max(a.X+a.Width, b.X+b.Width)
	y2 := math.Max(a.Y+a.Height, b.Y+b.Height)
	return Box{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func (c *Column) setBox(b Box) {
	if c.Pending.Box == b {
		return
	}
	c.Pending.Box = b
	c.SetDirty()
}
