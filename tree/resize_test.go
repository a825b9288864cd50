package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizeColumnTakesFromNeighbour(t *testing.T) {
	f := newFixture(t)
	a := f.spawn("a")
	c := f.ws.AddColumn(f.output, 1)
	b := f.root.NewWindow(content("b"))
	c.InsertWindow(b, 0)
	f.loop.Dispatch()
	require.Equal(t, 960.0, a.Current.Box.Width)

	require.True(t, a.Pending.Parent.Resize(240))
	f.loop.Dispatch()
	assert.Equal(t, 1200.0, a.Current.Box.Width)
	assert.Equal(t, 720.0, b.Current.Box.Width)
	assert.Equal(t, 1200.0, b.Current.Box.X)

	// Last column takes from the left one
	require.True(t, c.Resize(80))
	f.loop.Dispatch()
	assert.Equal(t, 800.0, b.Current.Box.Width)

	assert.False(t, c.Resize(-800), "would squeeze below the minimum width")
	assert.False(t, f.ws.AddColumn(f.output, 5).Resize(10), "not arranged yet")
}

func TestResizeHeightInSplitColumn(t *testing.T) {
	f := newFixture(t)
	a := f.spawn("a")
	b := f.spawn("b")
	f.loop.Dispatch()
	require.Equal(t, 540.0, b.Current.Box.Height)

	require.True(t, b.ResizeHeight(100))
	f.loop.Dispatch()
	assert.Equal(t, 440.0, a.Current.Box.Height)
	assert.Equal(t, 640.0, b.Current.Box.Height)
	assert.Equal(t, 440.0, b.Current.Box.Y)

	a.Pending.Parent.SetLayout(LayoutStacked)
	assert.False(t, a.ResizeHeight(10))
}

func TestMoveWindowWithinColumn(t *testing.T) {
	f := newFixture(t)
	a := f.spawn("a")
	b := f.spawn("b")
	c := a.Pending.Parent
	c.MoveWindow(b, 0)
	assert.Equal(t, []*Window{b, a}, c.Pending.Children)
	f.loop.Dispatch()
	assert.Zero(t, b.Current.Box.Y)
	assert.Equal(t, 540.0, a.Current.Box.Y)

	c.MoveWindow(b, 10)
	assert.Equal(t, []*Window{a, b}, c.Pending.Children)
}
