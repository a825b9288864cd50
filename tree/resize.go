// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package tree

import "slices"

// Resize grows the column by delta pixels (shrinks when negative), taking
// the space from its right neighbour, or the left one for the last column.
// Returns false when either column would drop below the minimum width.
func (c *Column) Resize(delta float64) bool {
	ws := c.Pending.Workspace
	if ws == nil || c.ChildTotalWidth <= 0 {
		return false
	}
	siblings := ws.ColumnsOn(c.Pending.Output)
	neighbour := neighbourOf(siblings, c)
	if neighbour == nil {
		return false
	}
	if !shiftFraction(&c.WidthFraction, &neighbour.WidthFraction, delta, c.ChildTotalWidth, MinSaneWidth) {
		return false
	}
	c.SetDirty()
	neighbour.SetDirty()
	return true
}

// ResizeHeight does the same as Column.Resize for a window in a split column
func (w *Window) ResizeHeight(delta float64) bool {
	c := w.Pending.Parent
	if c == nil || c.Pending.Layout != LayoutSplit || w.ChildTotalHeight <= 0 {
		return false
	}
	neighbour := neighbourOf(c.Pending.Children, w)
	if neighbour == nil {
		return false
	}
	if !shiftFraction(&w.HeightFraction, &neighbour.HeightFraction, delta, w.ChildTotalHeight, MinSaneHeight) {
		return false
	}
	w.SetDirty()
	neighbour.SetDirty()
	return true
}

// MoveWindow moves w to index (clamped) within the column
func (c *Column) MoveWindow(w *Window, index int) {
	from := c.IndexOf(w)
	if from < 0 {
		return
	}
	index = max(0, min(index, len(c.Pending.Children)-1))
	if from == index {
		return
	}
	c.Pending.Children = slices.Delete(c.Pending.Children, from, from+1)
	c.Pending.Children = slices.Insert(c.Pending.Children, index, w)
	c.SetDirty()
	w.SetDirty()
}

func neighbourOf[T comparable](siblings []T, member T) T {
	var zero T
	idx := slices.Index(siblings, member)
	switch {
	case idx < 0 || len(siblings) < 2:
		return zero
	case idx == len(siblings)-1:
		return siblings[idx-1]
	default:
		return siblings[idx+1]
	}
}

func shiftFraction(grow, shrink *float64, delta, total, minSize float64) bool {
	d := delta / total
	if (*grow+d)*total < minSize || (*shrink-d)*total < minSize {
		return false
	}
	*grow += d
	*shrink -= d
	return true
}
