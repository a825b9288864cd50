package multiplexer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, c <-chan T) T {
	t.Helper()
	select {
	case msg, ok := <-c:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("nothing received")
	}
	var zero T
	return zero
}

func TestOneToManyCopiesToEveryReceiver(t *testing.T) {
	plexer := NewOneToMany[int](4)
	go plexer.StartPlexer()
	defer plexer.CloseSender()

	a, err := plexer.MakeReceiver("a")
	require.NoError(t, err)
	b, err := plexer.MakeReceiver("b")
	require.NoError(t, err)
	_, err = plexer.MakeReceiver("a")
	assert.ErrorIs(t, err, ErrReceiverExists)

	require.NoError(t, plexer.Send(1))
	assert.Equal(t, 1, receive(t, a))
	assert.Equal(t, 1, receive(t, b))

	plexer.CloseReceiver("b")
	_, ok := <-b
	assert.False(t, ok)
	assert.Equal(t, 1, plexer.Receivers())
}

func TestOneToManyDropsForSlowReceivers(t *testing.T) {
	plexer := NewOneToMany[int](1)
	dropped := make(chan int, 4)
	plexer.OnDrop = func(_ string, msg int) { dropped <- msg }
	go plexer.StartPlexer()
	defer plexer.CloseSender()

	slow, err := plexer.MakeReceiver("slow")
	require.NoError(t, err)
	require.NoError(t, plexer.Send(1))
	require.NoError(t, plexer.Send(2))
	assert.Equal(t, 2, receive(t, (<-chan int)(dropped)))
	assert.Equal(t, 1, receive(t, slow))
}

func TestOneToManyClose(t *testing.T) {
	plexer := NewOneToMany[string](1)
	go plexer.StartPlexer()
	c, err := plexer.MakeReceiver("a")
	require.NoError(t, err)

	plexer.CloseSender()
	_, ok := <-c
	assert.False(t, ok)
	assert.ErrorIs(t, plexer.Send("late"), ErrClosed)
	_, err = plexer.MakeReceiver("b")
	assert.ErrorIs(t, err, ErrClosed)
	// Closing twice is fine
	plexer.CloseSender()
}

func TestManyToOne(t *testing.T) {
	out := make(chan string, 2)
	plexer := NewManyToOne(out)
	require.NoError(t, plexer.Send("a"))
	assert.Equal(t, "a", <-out)

	plexer.Close()
	plexer.Close()
	assert.ErrorIs(t, plexer.Send("b"), ErrClosed)
	_, ok := <-out
	assert.False(t, ok)
}
