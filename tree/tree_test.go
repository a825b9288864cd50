package tree

import (
	"errors"
	"testing"
	"time"

	"github.com/mstarongithub/wayward/loop"
	"github.com/mstarongithub/wayward/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type content string

func (c content) AppID() string { return string(c) }
func (c content) Title() string { return string(c) }

type fixture struct {
	loop   *loop.Loop
	clock  *loop.ManualClock
	txn    *transaction.Manager
	root   *Root
	output *Output
	ws     *Workspace
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := loop.NewManualClock(time.Unix(1700000000, 0))
	l := loop.New(loop.WithClock(clock.Now))
	txn, err := transaction.New(l, transaction.WithClock(clock.Now))
	require.NoError(t, err)
	root, err := NewRoot(txn)
	require.NoError(t, err)
	txn.OnBeforeCommit(root.Arrange)
	f := &fixture{
		loop:   l,
		clock:  clock,
		txn:    txn,
		root:   root,
		output: root.AddOutput("HEADLESS-1", Mode{Width: 1920, Height: 1080, Refresh: 60000}, nil),
		ws:     root.CreateWorkspace("1"),
	}
	f.loop.Dispatch()
	require.Equal(t, transaction.PhaseIdle, txn.Phase())
	return f
}

func (f *fixture) spawn(name string) *Window {
	w := f.root.NewWindow(content(name))
	f.ws.PlaceWindow(w)
	return w
}

func TestNewRootNeedsManager(t *testing.T) {
	r, err := NewRoot(nil)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrNoTransactionManager)
}

func TestFirstTransactionCommitsEverything(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Box{Width: 1920, Height: 1080}, f.output.Current.Box)
	assert.Equal(t, f.ws, f.root.Current.ActiveWorkspace)
	assert.Equal(t, f.output.Current.Box, f.ws.Current.Box)
	for _, n := range []*Node{&f.root.Node, &f.output.Node, &f.ws.Node} {
		assert.False(t, n.Dirty(), n.String())
		assert.Zero(t, n.TxnRefs(), n.String())
	}
}

func TestColumnsShareTheOutput(t *testing.T) {
	f := newFixture(t)
	f.root.Gaps = 10
	a := f.spawn("a")
	// Second column right of the first
	c := f.ws.AddColumn(f.output, 1)
	b := f.root.NewWindow(content("b"))
	c.InsertWindow(b, 0)
	f.loop.Dispatch()

	assert.Equal(t, Box{X: 0, Y: 0, Width: 955, Height: 1080}, a.Current.Box)
	assert.Equal(t, Box{X: 965, Y: 0, Width: 955, Height: 1080}, b.Current.Box)
	assert.InDelta(t, 0.5, a.Pending.Parent.WidthFraction, 0.0001)
}

func TestSplitColumnStacksWindowsVertically(t *testing.T) {
	f := newFixture(t)
	f.root.Gaps = 10
	a := f.spawn("a")
	b := f.spawn("b")
	c := f.spawn("c")
	f.loop.Dispatch()

	require.Equal(t, a.Pending.Parent, c.Pending.Parent)
	assert.Equal(t, Box{Y: 0, Width: 1920, Height: 353}, a.Current.Box)
	assert.Equal(t, Box{Y: 363, Width: 1920, Height: 353}, b.Current.Box)
	// Last window takes the rounding remainder
	assert.Equal(t, Box{Y: 726, Width: 1920, Height: 354}, c.Current.Box)
}

func TestStackedColumnShowsActiveChildOnly(t *testing.T) {
	f := newFixture(t)
	a := f.spawn("a")
	b := f.spawn("b")
	a.Pending.Parent.SetLayout(LayoutStacked)
	f.loop.Dispatch()

	assert.Equal(t, a.Current.Box, b.Current.Box)
	assert.Equal(t, b, f.root.FocusedWindow())
	assert.True(t, b.IsVisible(Current))
	assert.False(t, a.IsVisible(Current))
}

func TestFullscreenCoversOutputAndHidesOthers(t *testing.T) {
	f := newFixture(t)
	f.root.Gaps = 10
	a := f.spawn("a")
	b := f.spawn("b")
	f.loop.Dispatch()

	a.SetFullscreen(true)
	f.loop.Dispatch()
	assert.Equal(t, f.output.Current.Box, a.Current.Box)
	assert.True(t, a.IsVisible(Current))
	assert.False(t, b.IsVisible(Current))

	b.SetFullscreen(true)
	assert.False(t, a.Pending.Fullscreen, "only one fullscreen window per workspace")
	f.loop.Dispatch()
	assert.True(t, b.IsVisible(Current))
	assert.False(t, a.IsVisible(Current))
	assert.Equal(t, 535.0, a.Current.Box.Height)
}

func TestFloatingWindowsAreClampedAndCentered(t *testing.T) {
	f := newFixture(t)
	w := f.spawn("a")
	w.SetFloating(true)
	f.loop.Dispatch()
	assert.Equal(t, Box{X: 480, Y: 270, Width: 960, Height: 540}, w.Current.Box)
	assert.True(t, w.Pending.Parent == nil)
	assert.Empty(t, f.ws.Pending.Columns, "the emptied column is destroyed")

	w.SetFloatingBox(Box{X: 5000, Y: 5000, Width: 10, Height: 10})
	f.loop.Dispatch()
	assert.Equal(t, Box{X: 910, Y: 510, Width: MinSaneWidth, Height: MinSaneHeight}, w.Current.Box)

	w.SetFloating(false)
	f.loop.Dispatch()
	assert.Equal(t, f.output.Current.Box, w.Current.Box)
}

func TestFloatingWindowsFollowTheWorkspace(t *testing.T) {
	f := newFixture(t)
	w := f.spawn("a")
	w.SetFloating(true)
	f.loop.Dispatch()

	f.output.SetUsableArea(Box{Y: 30, Width: 1920, Height: 1050})
	f.loop.Dispatch()
	assert.Equal(t, 300.0, w.Current.Box.Y)
	assert.Equal(t, 30.0, f.ws.Current.Box.Y)
}

func TestSetDirtyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	w := f.spawn("a")
	f.loop.Dispatch()

	w.Pending.Box.Width = 800
	w.SetDirty()
	w.SetDirty()
	w.SetDirty()
	seq := f.txn.Sequence()
	f.txn.OnCommit(func() {
		count := 0
		for _, instruction := range f.root.Instructions() {
			if instruction.Node == &w.Node {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})
	f.loop.Dispatch()
	assert.Equal(t, seq+1, f.txn.Sequence())
}

func TestCurrentOnlyChangesOnApply(t *testing.T) {
	f := newFixture(t)
	a := f.spawn("a")
	f.loop.Dispatch()

	var lock *transaction.CommitLock
	sub := f.txn.OnCommit(func() { lock = f.txn.AcquireCommitLock() })
	defer sub.Cancel()

	a.SetFloating(true)
	f.loop.Dispatch()
	require.Equal(t, transaction.PhaseWaitingConfirm, f.txn.Phase())
	assert.False(t, a.Current.Floating)
	assert.True(t, a.Committed.Floating)
	assert.NotNil(t, a.Instruction())
	assert.Equal(t, 1, a.TxnRefs())

	lock.Release()
	assert.True(t, a.Current.Floating)
	assert.Nil(t, a.Instruction())
	assert.Zero(t, a.TxnRefs())
}

func TestDestroyWaitsForTransactions(t *testing.T) {
	f := newFixture(t)
	w := f.spawn("a")
	column := w.Pending.Parent
	f.loop.Dispatch()

	var lock *transaction.CommitLock
	sub := f.txn.OnCommit(func() { lock = f.txn.AcquireCommitLock() })
	w.Pending.Box.Width = 800
	w.SetDirty()
	f.loop.Dispatch()
	require.Equal(t, transaction.PhaseWaitingConfirm, f.txn.Phase())

	freed := map[ID]bool{}
	f.root.OnFree(func(n *Node) { freed[n.ID()] = true })
	w.BeginDestroy()
	assert.True(t, w.Destroying())
	assert.False(t, w.Freed())
	sub.Cancel()

	lock.Release()
	assert.False(t, w.Freed(), "destruction still needs its own transaction")
	_, ok := f.root.Lookup(w.ID())
	assert.True(t, ok)

	f.loop.Dispatch()
	assert.True(t, w.Freed())
	assert.True(t, column.Freed())
	assert.True(t, freed[w.ID()])
	_, ok = f.root.Lookup(w.ID())
	assert.False(t, ok)
	assert.Empty(t, f.root.Windows())
}

func TestSwitchingWorkspacesDropsEmptyOnes(t *testing.T) {
	f := newFixture(t)
	pinned := f.spawn("a")
	pinned.SetFloating(true)
	pinned.SetPinned(true)
	f.loop.Dispatch()

	two := f.root.CreateWorkspace("2")
	f.root.SwitchWorkspace(two)
	f.loop.Dispatch()

	assert.Equal(t, two, pinned.Current.Workspace)
	assert.True(t, pinned.Current.Floating)
	assert.True(t, f.ws.Freed())
	assert.Nil(t, f.root.WorkspaceByName("1"))
	assert.Equal(t, []*Workspace{two}, f.root.Current.Workspaces)
}

func TestPinningNeedsFloating(t *testing.T) {
	f := newFixture(t)
	w := f.spawn("a")
	w.SetPinned(true)
	assert.False(t, w.Pending.Pinned)
}

type rejectingBackend struct {
	calls int
}

func (b *rejectingBackend) CommitState(bool, Mode) error {
	b.calls++
	return errors.New("mode not supported")
}

func TestRejectedOutputStateIsReverted(t *testing.T) {
	f := newFixture(t)
	backend := &rejectingBackend{}
	f.output.Backend = backend

	f.output.SetMode(Mode{Width: 640, Height: 480, Refresh: 60000})
	f.loop.Dispatch()
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, 1920, f.output.Current.Mode.Width)
	assert.Equal(t, 1920, f.output.Pending.Mode.Width)

	f.loop.Dispatch()
	assert.Equal(t, 1920.0, f.output.Current.Box.Width)
}

func TestSecondOutputIsPlacedToTheRight(t *testing.T) {
	f := newFixture(t)
	second := f.root.AddOutput("HEADLESS-2", Mode{Width: 1280, Height: 720}, nil)
	f.loop.Dispatch()
	assert.Equal(t, Box{X: 1920, Width: 1280, Height: 720}, second.Current.Box)
	assert.Equal(t, Box{Width: 3200, Height: 1080}, f.root.Box)

	f.root.SetActiveOutput(second)
	w := f.spawn("a")
	f.loop.Dispatch()
	assert.Equal(t, second, w.Current.Output)
	assert.Equal(t, 1920.0, w.Current.Box.X)

	second.SetEnabled(false)
	f.loop.Dispatch()
	assert.Equal(t, f.output, w.Current.Output)
	assert.Equal(t, f.output, f.root.Current.ActiveOutput)
	assert.Equal(t, Box{Width: 1920, Height: 1080}, w.Current.Box)
}

func TestNormalizeFractions(t *testing.T) {
	a, b, c := 0.25, 0.75, 0.0
	normalizeFractions([]*float64{&a, &b, &c})
	assert.InDelta(t, 1.0/6, a, 0.0001)
	assert.InDelta(t, 0.5, b, 0.0001)
	assert.InDelta(t, 1.0/3, c, 0.0001)
}

func TestGapsNeverSqueezeBelowMinimum(t *testing.T) {
	inner, total := gapSize(50, 320, 3, MinSaneWidth)
	assert.Equal(t, 20.0, total)
	assert.Equal(t, 10.0, inner)

	inner, total = gapSize(50, 2000, 1, MinSaneWidth)
	assert.Zero(t, inner)
	assert.Zero(t, total)
}
