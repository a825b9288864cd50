package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mstarongithub/wayward/commands"
	"github.com/mstarongithub/wayward/desktop"
	"github.com/mstarongithub/wayward/loop"
	"github.com/mstarongithub/wayward/scene"
	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/util/wrappers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepl(input string) (*Repl, *bytes.Buffer) {
	var out bytes.Buffer
	r := NewRepl(wrappers.NewReaderWrapper(strings.NewReader(input)), wrappers.NewWriterWrapper(&out))
	return r, &out
}

func TestRunAnswersEveryLine(t *testing.T) {
	r, out := newTestRepl("hello\n\nbroken\nquit\nignored\n")
	r.Prompt = "> "
	err := r.Run(func(msg string, _ *Repl) (string, error) {
		switch msg {
		case "broken":
			return "", errors.New("nope")
		case "quit":
			return "bye", ErrQuit
		default:
			return "echo " + msg, nil
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "> echo hello\n> > error: nope\n> bye\n", out.String())
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	r, out := newTestRepl("one\n")
	require.NoError(t, r.Run(func(msg string, _ *Repl) (string, error) { return msg, nil }))
	assert.Equal(t, "one\n", out.String())
	// Closed after running, closing again is fine
	r.Close()
}

func newTestHandler(t *testing.T) (MessageHandler, *bool) {
	t.Helper()
	l := loop.New()
	d, err := desktop.New(nil, l, scene.NewGraph())
	require.NoError(t, err)
	d.AddOutput("HEADLESS-1", tree.Mode{Width: 1920, Height: 1080}, nil)
	runner := commands.New(d)
	runner.Exec = func(string) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	quit := false
	return NewHandler(ctx, d, runner, func() { quit = true }), &quit
}

func TestHandler(t *testing.T) {
	handle, quit := newTestHandler(t)

	res, err := handle("spawn foot 5", nil)
	require.NoError(t, err)
	assert.Contains(t, res, "Spawned foot")

	_, err = handle("spawn foot slow", nil)
	assert.ErrorIs(t, err, commands.ErrInvalidArgument)

	require.Eventually(t, func() bool {
		res, err := handle("inspect focused", nil)
		return err == nil && strings.Contains(res, "foot")
	}, time.Second, 10*time.Millisecond)

	res, err = handle("layout stacked", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	_, err = handle("run true", nil)
	assert.NoError(t, err)

	_, err = handle("frobnicate", nil)
	assert.ErrorIs(t, err, commands.ErrUnknownCommand)
	_, err = handle("inspect everything", nil)
	assert.ErrorIs(t, err, ErrUnknownTarget)

	res, err = handle("inspect transaction", nil)
	require.NoError(t, err)
	assert.Contains(t, res, "Phase")

	res, err = handle("help", nil)
	require.NoError(t, err)
	assert.Contains(t, res, "workspace")

	_, err = handle("quit", nil)
	assert.ErrorIs(t, err, ErrQuit)
	assert.True(t, *quit)
}
