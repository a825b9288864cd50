package main

import (
	"testing"

	"github.com/mstarongithub/wayward/tree"
	"github.com/mstarongithub/wayward/view"
	"github.com/stretchr/testify/assert"
)

// Both wrap the pinned go-wlroots bindings, these fail to build when a
// wrapped method is missing there
var (
	_ view.Client        = (*toplevel)(nil)
	_ tree.OutputBackend = (*output)(nil)
)

func TestStopEndsRunFromAnyGoroutine(t *testing.T) {
	server := &Server{}
	assert.False(t, server.stopped.Load())

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Stop()
	}()
	<-done
	assert.True(t, server.stopped.Load())
}
