package main

import (
	"strings"
	"testing"

	"github.com/mstarongithub/wayward/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBindingsUseKnownCommands(t *testing.T) {
	known := commands.Names()
	for sym, command := range defaultBindings() {
		fields := strings.Fields(command)
		require.NotEmpty(t, fields, "binding for %d", sym)
		assert.Contains(t, known, fields[0], "binding for %d", sym)
	}
}

func TestNumberKeysSwitchWorkspaces(t *testing.T) {
	bindings := defaultBindings()
	assert.Equal(t, "workspace 1", bindings['1'])
	assert.Equal(t, "workspace 9", bindings['9'])
	assert.Equal(t, "focus left", bindings['h'])
	assert.Equal(t, "move left", bindings['H'])
}

func TestTerminalBindingFollowsEnvironment(t *testing.T) {
	t.Setenv("TERMINAL", "alacritty")
	assert.Equal(t, "exec alacritty", defaultBindings()[keySymReturn])
}
