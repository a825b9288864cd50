package scene

import (
	"testing"
	"time"

	"github.com/mstarongithub/wayward/loop"
	"github.com/mstarongithub/wayward/transaction"
	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApplierNeedsEverything(t *testing.T) {
	a, err := NewApplier(nil, nil, NewGraph())
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrMissingCollaborator)
}

func TestSceneOnlySeesAppliedState(t *testing.T) {
	clock := loop.NewManualClock(time.Unix(1700000000, 0))
	l := loop.New(loop.WithClock(clock.Now))
	txn, err := transaction.New(l, transaction.WithClock(clock.Now))
	require.NoError(t, err)
	root, err := tree.NewRoot(txn)
	require.NoError(t, err)
	txn.OnBeforeCommit(root.Arrange)
	bridge, err := view.NewBridge(root)
	require.NoError(t, err)
	graph := NewGraph()
	_, err = NewApplier(root, bridge, graph)
	require.NoError(t, err)

	root.AddOutput("HEADLESS-1", tree.Mode{Width: 1920, Height: 1080}, nil)
	ws := root.CreateWorkspace("1")
	l.Dispatch()

	client := view.NewSimulatedClient(l, "foot", 16*time.Millisecond)
	v := bridge.NewView(client, &view.SerialAck{})
	client.Bind(v)
	ws.PlaceWindow(v.Window())
	l.Dispatch()

	_, ok := graph.Placement(v.Window().ID())
	assert.False(t, ok, "nothing is drawn before the transaction applies")

	clock.Advance(16 * time.Millisecond)
	l.Dispatch()
	p, ok := graph.Placement(v.Window().ID())
	require.True(t, ok)
	assert.True(t, p.Visible)
	assert.Equal(t, tree.Box{Width: 1920, Height: 1080}, p.Surface)
	assert.Equal(t, LayerTiling, p.Layer)

	v.Window().SetFloating(true)
	l.Dispatch()
	clock.Advance(16 * time.Millisecond)
	l.Dispatch()
	p, _ = graph.Placement(v.Window().ID())
	assert.Equal(t, LayerFloating, p.Layer)
	assert.Len(t, graph.Stack(), 1)

	client.Close()
	for range 3 {
		l.Dispatch()
	}
	_, ok = graph.Placement(v.Window().ID())
	assert.False(t, ok)
	assert.Empty(t, graph.Stack())
}

func TestStackOrdersLayers(t *testing.T) {
	g := NewGraph()
	g.Place(Placement{ID: 3, Visible: true, Layer: LayerFullscreen})
	g.Place(Placement{ID: 1, Visible: true, Layer: LayerFloating})
	g.Place(Placement{ID: 2, Visible: true})
	g.Place(Placement{ID: 4})
	updates := g.Updates()
	g.Place(Placement{ID: 4})
	assert.Equal(t, updates, g.Updates(), "unchanged placements are not updates")

	var ids []tree.ID
	for _, p := range g.Stack() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []tree.ID{2, 1, 3}, ids)
}
