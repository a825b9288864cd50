package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mstarongithub/wayward/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 200*time.Millisecond, cfg.TxnTimeout())
	assert.Equal(t, tree.LayoutSplit, cfg.Layout())
}

func TestLoadToml(t *testing.T) {
	path := writeFile(t, "config.toml", `
txn_timeout_ms = 50
gaps_inner = 8.0
default_layout = "stacked"
workspaces = ["web", "code"]
ipc_socket = "/tmp/wayward-test.sock"

[debug]
txn_timings = true

[[outputs]]
name = "DP-1"
width = 2560
height = 1440

[[outputs]]
name = "HDMI-A-1"
disabled = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.TxnTimeout())
	assert.Equal(t, 8.0, cfg.GapsInner)
	assert.Equal(t, tree.LayoutStacked, cfg.Layout())
	assert.Equal(t, []string{"web", "code"}, cfg.Workspaces)
	assert.True(t, cfg.Debug.TxnTimings)
	assert.False(t, cfg.Debug.NoAtomic)
	require.Len(t, cfg.Outputs, 2)
	dp, ok := cfg.Output("DP-1")
	require.True(t, ok)
	assert.Equal(t, 2560, dp.Width)
	hdmi, _ := cfg.Output("HDMI-A-1")
	assert.True(t, hdmi.Disabled)
}

func TestLoadYaml(t *testing.T) {
	path := writeFile(t, "config.yaml", `
txn_timeout_ms: 120
ipc_socket: /tmp/wayward-test.sock
debug:
  noatomic: true
outputs:
  - name: eDP-1
    x: 0
    y: 1080
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.TxnTimeoutMs)
	assert.True(t, cfg.Debug.NoAtomic)
	edp, ok := cfg.Output("eDP-1")
	require.True(t, ok)
	assert.Equal(t, 1080.0, edp.Y)
	// Not in the file, kept from the defaults
	assert.Equal(t, "split", cfg.DefaultLayout)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "config.toml", "txn_timeout_ms = 50\nipc_socket = \"/tmp/a.sock\"\n")
	t.Setenv("WAYWARD_TXN_TIMEOUT_MS", "75")
	t.Setenv("WAYWARD_DEBUG_TXN_WAIT", "true")
	t.Setenv("WAYWARD_WORKSPACES", "a,b,c")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.TxnTimeoutMs)
	assert.True(t, cfg.Debug.TxnWait)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Workspaces)
	assert.Equal(t, "/tmp/a.sock", cfg.IPCSocket)
}

func TestUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "config.ini", "txn_timeout_ms=1")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestInvalidValues(t *testing.T) {
	cases := map[string]string{
		"timeout":       "txn_timeout_ms = 0\n",
		"layout":        "default_layout = \"spiral\"\n",
		"log level":     "log_level = \"chatty\"\n",
		"nameless":      "[[outputs]]\nwidth = 800\n",
		"start command": "start_type = 1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "config.toml", "ipc_socket = \"/tmp/a.sock\"\n"+content)
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
