package config

import (
	"image/color"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ScribblePad/internal/state"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	style, err := cfg.Stroke.Style()
	require.NoError(t, err)
	assert.Equal(t, 4.0, style.Width)
	assert.Equal(t, color.NRGBA{A: 255}, style.Color)
	assert.Equal(t, state.AllChannels, cfg.Input.Channels())
	assert.Equal(t, 500*time.Millisecond, cfg.Input.DedupWindow.Duration)
}

func TestParse(t *testing.T) {
	cfg, err := Parse(`
[stroke]
color = "#ff0000"
width = 6
closing_dot = false

[input]
pointer = false
dedup_window = "250ms"

[remote]
listen = "127.0.0.1:9999"
`)
	require.NoError(t, err)

	assert.Equal(t, 6.0, cfg.Stroke.Width)
	assert.False(t, cfg.Stroke.ClosingDot)
	assert.Equal(t, state.ChannelTouch, cfg.Input.Channels())
	assert.Equal(t, 250*time.Millisecond, cfg.Input.DedupWindow.Duration)
	assert.Equal(t, "127.0.0.1:9999", cfg.Remote.Listen)
	assert.Equal(t, "scribble-v1", cfg.Assets.CacheName, "unset keys keep defaults")

	style, err := cfg.Stroke.Style()
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, style.Color)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"zero width", "[stroke]\nwidth = 0"},
		{"bad colour", "[stroke]\ncolor = \"#zzzzzz\""},
		{"no channels", "[input]\npointer = false\ntouch = false"},
		{"bad level", "[log]\nlevel = \"loud\""},
		{"empty listen", "[remote]\nenabled = true\nlisten = \"\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("black")
	require.NoError(t, err)
	assert.Equal(t, color.Black, c)

	c, err = ParseColor("00f")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, c)

	_, err = ParseColor("#12")
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SCRIBBLE_STROKE_WIDTH":   "9",
		"SCRIBBLE_REMOTE_ENABLED": "false",
		"SCRIBBLE_LOG_LEVEL":      "debug",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, 9.0, cfg.Stroke.Width)
	assert.False(t, cfg.Remote.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)

	env["SCRIBBLE_REMOTE_ENABLED"] = "maybe"
	assert.ErrorIs(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}), ErrInvalid)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Stroke, cfg.Stroke)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[stroke\nwidth ="), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWatcherReloadsStyle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[stroke]\nwidth = 4\n"), 0o644))
	initial, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	var width atomic.Value
	w.OnChange(func(c Config) { width.Store(c.Stroke.Width) })
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[stroke]\nwidth = 12\n"), 0o644))

	require.Eventually(t, func() bool {
		v, ok := width.Load().(float64)
		return ok && v == 12
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 12.0, w.Current().Stroke.Width)
}
