package commands

import (
	"testing"
	"time"

	"github.com/mstarongithub/wayward/desktop"
	"github.com/mstarongithub/wayward/loop"
	"github.com/mstarongithub/wayward/scene"
	"github.com/mstarongithub/wayward/transaction"
	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	*Runner
	d      *desktop.Desktop
	output *tree.Output
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := loop.NewManualClock(time.Unix(1700000000, 0))
	l := loop.New(loop.WithClock(clock.Now))
	d, err := desktop.New(nil, l, scene.NewGraph(), transaction.WithClock(clock.Now))
	require.NoError(t, err)
	f := &fixture{
		Runner: New(d),
		d:      d,
		output: d.AddOutput("HEADLESS-1", tree.Mode{Width: 1920, Height: 1080, Refresh: 60000}, nil),
	}
	f.settle()
	return f
}

func (f *fixture) settle() {
	for range 4 {
		f.d.Loop.Dispatch()
	}
}

func (f *fixture) spawn(name string) *tree.Window {
	client := view.NewSimulatedClient(f.d.Loop, name, 0)
	v := f.d.Map(client, &view.SerialAck{})
	client.Bind(v)
	f.settle()
	return v.Window()
}

func (f *fixture) mustRun(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, f.Run(line))
	f.settle()
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.Run("frobnicate now"), ErrUnknownCommand)
	assert.NoError(t, f.Run("   "))
	assert.NoError(t, f.Run(";;"))
}

func TestWindowCommandsNeedFocus(t *testing.T) {
	f := newFixture(t)
	for _, line := range []string{"fullscreen", "floating enable", "layout stacked", "kill", "move left", "resize grow width 10"} {
		assert.ErrorIs(t, f.Run(line), ErrNoFocus, line)
	}
}

func TestLayout(t *testing.T) {
	f := newFixture(t)
	a := f.spawn("a")
	b := f.spawn("b")
	require.Same(t, a.Pending.Parent, b.Pending.Parent)

	f.mustRun(t, "layout stacked")
	assert.Equal(t, tree.LayoutStacked, b.Current.Parent.Current.Layout)
	assert.False(t, a.IsVisible(tree.Current))
	assert.True(t, b.IsVisible(tree.Current))

	f.mustRun(t, "layout toggle")
	assert.Equal(t, tree.LayoutSplit, b.Current.Parent.Current.Layout)
	assert.ErrorIs(t, f.Run("layout spiral"), ErrInvalidArgument)
}

func TestToggles(t *testing.T) {
	f := newFixture(t)
	w := f.spawn("a")

	f.mustRun(t, "fullscreen")
	assert.True(t, w.Current.Fullscreen)
	f.mustRun(t, "fullscreen toggle")
	assert.False(t, w.Current.Fullscreen)

	assert.ErrorIs(t, f.Run("pin enable"), ErrInvalidArgument)
	f.mustRun(t, "floating enable")
	f.mustRun(t, "pin")
	assert.True(t, w.Current.Floating)
	assert.True(t, w.Current.Pinned)

	f.mustRun(t, "floating disable")
	assert.False(t, w.Current.Floating)
	assert.False(t, w.Current.Pinned)
	assert.ErrorIs(t, f.Run("floating sideways"), ErrInvalidArgument)
}

// Everything on one line is committed together, failures don't stop the rest
func TestCommandListSharesATransaction(t *testing.T) {
	f := newFixture(t)
	w := f.spawn("a")
	seq := f.d.Txn.Sequence()

	err := f.Run("floating enable; bogus; fullscreen enable")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Equal(t, seq, f.d.Txn.Sequence(), "nothing commits before the loop runs")

	f.d.Loop.Dispatch()
	assert.Equal(t, seq+1, f.d.Txn.Sequence())
	assert.True(t, w.Committed.Floating)
	assert.True(t, w.Committed.Fullscreen)
}

// Separate command lines arriving in the same loop iteration, like two
// keybindings or two ipc requests, still make one transaction
func TestCommandsOfOneIterationShareATransaction(t *testing.T) {
	f := newFixture(t)
	f.spawn("a")
	w := f.spawn("b")
	seq := f.d.Txn.Sequence()

	require.NoError(t, f.Run("gaps inner 10"))
	require.NoError(t, f.Run("layout stacked"))
	assert.Equal(t, seq, f.d.Txn.Sequence())
	assert.True(t, f.d.Txn.Queued())

	f.d.Loop.Dispatch()
	assert.Equal(t, seq+1, f.d.Txn.Sequence())
	assert.Equal(t, tree.LayoutStacked, w.Committed.Parent.Committed.Layout)

	f.settle()
	assert.Equal(t, seq+1, f.d.Txn.Sequence(), "nothing was left over for a second transaction")
	assert.Equal(t, transaction.PhaseIdle, f.d.Txn.Phase())
}

func TestWorkspaces(t *testing.T) {
	f := newFixture(t)
	w := f.spawn("a")
	root := f.d.Root

	f.mustRun(t, "workspace code")
	assert.Equal(t, "code", root.Current.ActiveWorkspace.Name)
	assert.False(t, w.IsVisible(tree.Current))

	f.mustRun(t, "workspace prev")
	assert.Equal(t, "1", root.Current.ActiveWorkspace.Name)
	// The empty workspace was dropped when leaving it
	assert.Len(t, root.Current.Workspaces, 1)

	f.mustRun(t, "move container to workspace web")
	assert.Equal(t, "web", w.Current.Workspace.Name)
	f.mustRun(t, "workspace next")
	assert.Equal(t, "web", root.Current.ActiveWorkspace.Name)
	assert.Nil(t, root.WorkspaceByName("1"), "left empty")
	assert.True(t, w.IsVisible(tree.Current))
	assert.ErrorIs(t, f.Run("workspace"), ErrInvalidArgument)
}

func TestMoveAndFocus(t *testing.T) {
	f := newFixture(t)
	a := f.spawn("a")
	b := f.spawn("b")

	f.mustRun(t, "move right")
	require.NotSame(t, a.Pending.Parent, b.Pending.Parent)
	assert.Equal(t, 960.0, b.Current.Box.X)
	assert.Equal(t, b, f.d.Root.FocusedWindow())

	f.mustRun(t, "focus left")
	assert.Equal(t, a, f.d.Root.FocusedWindow())
	f.mustRun(t, "move right")
	assert.Same(t, a.Pending.Parent, b.Pending.Parent)
	assert.Len(t, f.d.Root.ActiveWorkspace().Pending.Columns, 1)

	f.mustRun(t, "move up")
	assert.Equal(t, []*tree.Window{a, b}, a.Pending.Parent.Pending.Children)
	f.mustRun(t, "focus down")
	assert.Equal(t, b, f.d.Root.FocusedWindow())
	assert.ErrorIs(t, f.Run("focus sideways"), ErrInvalidArgument)
}

func TestFocusModeToggle(t *testing.T) {
	f := newFixture(t)
	a := f.spawn("a")
	b := f.spawn("b")
	f.mustRun(t, "floating enable")
	require.Equal(t, b, f.d.Root.FocusedWindow())

	f.mustRun(t, "focus mode_toggle")
	assert.Equal(t, a, f.d.Root.FocusedWindow())
	f.mustRun(t, "focus mode_toggle")
	assert.Equal(t, b, f.d.Root.FocusedWindow())
}

func TestMoveFloating(t *testing.T) {
	f := newFixture(t)
	w := f.spawn("a")
	f.mustRun(t, "floating enable")
	x := w.Current.Box.X
	f.mustRun(t, "move left 25")
	assert.Equal(t, x-25, w.Current.Box.X)
	f.mustRun(t, "move right")
	assert.Equal(t, x-15, w.Current.Box.X)
}

func TestResize(t *testing.T) {
	f := newFixture(t)
	a := f.spawn("a")
	f.spawn("b")
	f.mustRun(t, "move right")
	f.mustRun(t, "focus left")

	f.mustRun(t, "resize grow width 240")
	assert.Equal(t, 1200.0, a.Current.Box.Width)
	f.mustRun(t, "resize shrink width 40")
	assert.Equal(t, 1160.0, a.Current.Box.Width)

	assert.ErrorIs(t, f.Run("resize grow height 10"), ErrInvalidArgument, "alone in its column")
	assert.ErrorIs(t, f.Run("resize grow width lots"), ErrInvalidArgument)
	assert.ErrorIs(t, f.Run("resize stretch width 10"), ErrInvalidArgument)
}

func TestKillClosesTheClient(t *testing.T) {
	f := newFixture(t)
	w := f.spawn("a")
	f.mustRun(t, "kill")
	assert.True(t, w.Freed())
	_, ok := f.d.FocusedView()
	assert.False(t, ok)
}

func TestExecUsesHook(t *testing.T) {
	f := newFixture(t)
	var got string
	f.Exec = func(command string) error {
		got = command
		return nil
	}
	f.mustRun(t, "exec foot --server")
	assert.Equal(t, "foot --server", got)
	assert.ErrorIs(t, f.Run("exec"), ErrInvalidArgument)
}

func TestOutputCommands(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "output HEADLESS-1 mode 1280x720@60000")
	assert.Equal(t, tree.Box{Width: 1280, Height: 720}, f.output.Current.Box)

	f.mustRun(t, "output HEADLESS-1 position 100 50")
	assert.Equal(t, tree.Box{X: 100, Y: 50, Width: 1280, Height: 720}, f.output.Current.Box)

	assert.ErrorIs(t, f.Run("output HEADLESS-1 disable"), ErrInvalidArgument)
	assert.ErrorIs(t, f.Run("output DP-3 enable"), ErrInvalidArgument)

	second := f.d.AddOutput("HEADLESS-2", tree.Mode{Width: 800, Height: 600}, nil)
	f.settle()
	f.mustRun(t, "output HEADLESS-2 toggle")
	assert.False(t, second.Current.Enabled)
}

func TestGaps(t *testing.T) {
	f := newFixture(t)
	a := f.spawn("a")
	f.spawn("b")
	before := a.Current.Box.Height

	require.NoError(t, f.Run("gaps inner 20"))
	assert.Equal(t, 20.0, f.d.Root.Gaps)
	assert.True(t, f.d.Txn.Queued())
	assert.Equal(t, before, a.Current.Box.Height, "gaps show up with the next commit")

	f.settle()
	assert.Equal(t, 530.0, a.Current.Box.Height)

	seq := f.d.Txn.Sequence()
	f.mustRun(t, "gaps inner 20")
	assert.Equal(t, seq, f.d.Txn.Sequence(), "same gaps again")
	assert.ErrorIs(t, f.Run("gaps outer 5"), ErrInvalidArgument)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("2560x1440@144000")
	require.NoError(t, err)
	assert.Equal(t, tree.Mode{Width: 2560, Height: 1440, Refresh: 144000}, mode)

	mode, err = ParseMode("800x600")
	require.NoError(t, err)
	assert.Zero(t, mode.Refresh)

	for _, bad := range []string{"", "800", "x600", "800x", "-1x600", "800x600@fast"} {
		_, err := ParseMode(bad)
		assert.ErrorIs(t, err, ErrInvalidArgument, bad)
	}
}
