package ipc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mstarongithub/wayward/commands"
	"github.com/mstarongithub/wayward/desktop"
	"github.com/mstarongithub/wayward/loop"
	"github.com/mstarongithub/wayward/scene"
	"github.com/mstarongithub/wayward/transaction"
	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/util/multiplexer"
	"github.com/mstarongithub/wayward/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct{}

func (fakeBackend) CommitState(bool, tree.Mode) error { return nil }

func (fakeBackend) Modes() []tree.Mode {
	return []tree.Mode{{Width: 1920, Height: 1080, Refresh: 60000}, {Width: 1280, Height: 720, Refresh: 60000}}
}

type serverFixture struct {
	d      *desktop.Desktop
	runner *commands.Runner
	server *Server
	ctx    context.Context
}

// Runs a desktop on a real loop and serves ipc for it
func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	l := loop.New()
	d, err := desktop.New(nil, l, scene.NewGraph())
	require.NoError(t, err)
	d.AddOutput("HEADLESS-1", tree.Mode{Width: 1920, Height: 1080, Refresh: 60000}, fakeBackend{})
	events := NewEvents(d.Root)
	runner := commands.New(d)
	f := &serverFixture{
		d:      d,
		runner: runner,
		server: NewServer(d, runner, events, filepath.Join(t.TempDir(), "ipc.sock")),
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.ctx = ctx
	loopDone := make(chan error, 1)
	serveDone := make(chan error, 1)
	go func() { loopDone <- l.Run(ctx) }()
	go func() { serveDone <- f.server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-serveDone
		<-loopDone
		events.Close()
	})
	f.waitIdle(t)
	return f
}

func (f *serverFixture) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		idle := false
		err := f.d.Loop.Call(f.ctx, func() {
			txn := f.d.Txn
			idle = txn.Phase() == transaction.PhaseIdle && !txn.Queued() && txn.Sequence() > 0
		})
		return err == nil && idle
	}, time.Second, 5*time.Millisecond)
}

func (f *serverFixture) spawn(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, f.d.Loop.Call(f.ctx, func() {
		client := view.NewSimulatedClient(f.d.Loop, name, 0)
		client.Bind(f.d.Map(client, &view.SerialAck{}))
	}))
}

func (f *serverFixture) dial(t *testing.T) *Client {
	t.Helper()
	var c *Client
	require.Eventually(t, func() bool {
		var err error
		c, err = Dial(f.server.Path())
		return err == nil
	}, time.Second, 5*time.Millisecond)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestServerDescribesTheTree(t *testing.T) {
	f := newServerFixture(t)
	c := f.dial(t)

	tr, err := c.Tree()
	require.NoError(t, err)
	require.Len(t, tr.Outputs, 1)
	assert.Equal(t, "HEADLESS-1", tr.Outputs[0].Name)
	assert.True(t, tr.Outputs[0].Enabled)
	require.Len(t, tr.Workspaces, 1)
	assert.Equal(t, "1", tr.Workspaces[0].Name)
	assert.True(t, tr.Workspaces[0].Focused)

	outputs, err := c.Outputs(OutputRequest{IncludeModes: true, SpecifiesOutput: true, TargetOutput: "HEADLESS-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, outputs.OutputsFound)
	assert.Len(t, outputs.Outputs[0].Modes, 2)

	outputs, err = c.Outputs(OutputRequest{SpecifiesOutput: true, TargetOutput: "DP-1"})
	require.NoError(t, err)
	assert.Zero(t, outputs.OutputsFound)

	txn, err := c.Transaction()
	require.NoError(t, err)
	assert.Equal(t, "idle", txn.Phase)
	assert.EqualValues(t, 200, txn.TimeoutMs)
}

func TestServerRunsCommands(t *testing.T) {
	f := newServerFixture(t)
	c := f.dial(t)
	f.spawn(t, "foot")
	f.waitIdle(t)

	require.NoError(t, c.Command("fullscreen enable"))
	require.Eventually(t, func() bool {
		workspaces, err := c.Workspaces()
		if err != nil || len(workspaces[0].Columns) == 0 {
			return false
		}
		return workspaces[0].Columns[0].Windows[0].Fullscreen
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, c.Command("frobnicate"), ErrRequestFailed)
	assert.ErrorIs(t, c.Request("NOPE", nil, nil), ErrRequestFailed)
	assert.ErrorIs(t, c.Request(RunCommand, 42, nil), ErrRequestFailed)
}

func TestSubscribersReceiveEvents(t *testing.T) {
	f := newServerFixture(t)
	c := f.dial(t)
	assert.ErrorIs(t, c.Subscribe("keyboard"), ErrRequestFailed)
	require.NoError(t, c.Subscribe(EventWindow))
	assert.ErrorIs(t, c.Subscribe(EventWindow), ErrRequestFailed)

	f.spawn(t, "foot")
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	ev, err := c.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, EventWindow, ev.Type)
	assert.Equal(t, "new", ev.Change)
	require.NotNil(t, ev.Window)
	assert.Equal(t, "foot", ev.Window.AppID)
}

func TestClosedConnectionStopsServingRequests(t *testing.T) {
	f := newServerFixture(t)
	var before float64
	require.NoError(t, f.d.Loop.Call(f.ctx, func() { before = f.d.Root.Gaps }))

	sender := multiplexer.NewManyToOne(make(chan Response, 4))
	sender.Close()
	requests := strings.Join([]string{
		`{"type":"SUBSCRIBE","payload":["window"]}`,
		`{"type":"RUN_COMMAND","payload":"gaps inner 42"}`,
	}, "\n")

	subscribed := f.server.serveRequests(f.ctx, "gone", strings.NewReader(requests), sender)
	assert.True(t, subscribed, "subscription has to be cleaned up by the caller")
	f.server.events.Unsubscribe("gone")
	assert.Zero(t, f.server.events.Subscribers())

	var after float64
	require.NoError(t, f.d.Loop.Call(f.ctx, func() { after = f.d.Root.Gaps }))
	assert.Equal(t, before, after, "request after the failed reply was run")

	// Other connections are unaffected
	c := f.dial(t)
	require.NoError(t, c.Command("gaps inner 42"))
	require.NoError(t, f.d.Loop.Call(f.ctx, func() { after = f.d.Root.Gaps }))
	assert.Equal(t, 42.0, after)
}

func TestDebugRouter(t *testing.T) {
	f := newServerFixture(t)
	server := httptest.NewServer(NewDebugRouter(f.d))
	defer server.Close()

	resp, err := http.Get(server.URL + "/transaction")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var txn Transaction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&txn))
	assert.Equal(t, "idle", txn.Phase)

	resp, err = http.Get(server.URL + "/outputs/HEADLESS-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	var output Output
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&output))
	assert.Len(t, output.Modes, 2)

	resp, err = http.Get(server.URL + "/outputs/DP-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
