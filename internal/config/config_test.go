package config

import (
	"os"
	"path/filepath"
	"testing"

	"labelsense/internal/canvas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[canvas]
max_zoom = 8.0
handle_threshold = 12

[classes]
defaults = ["car", "truck"]

[export]
train_percent = 150
seed = 42
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8.0, cfg.Canvas.MaxZoom)
	assert.Equal(t, 12.0, cfg.Canvas.HandleThreshold)
	assert.Equal(t, canvas.DefaultMinZoom, cfg.Canvas.MinZoom)
	assert.Equal(t, []string{"car", "truck"}, cfg.Classes.Defaults)
	assert.Equal(t, 100.0, cfg.Export.TrainPercent)
	assert.Equal(t, uint64(42), cfg.Export.Seed)
	assert.Equal(t, 8, cfg.Images.CacheSize)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[canvas]\nzoom_speed = 3\nmax_zoom = 500\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	assert.ErrorContains(t, err, "canvas.zoom_speed")
	assert.Equal(t, Default(), cfg, "known keys of a rejected file are not applied")
}

func TestLoadSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[canvas\n"), 0o644))

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidateClamps(t *testing.T) {
	cfg := &Config{}
	cfg.Canvas.MinZoom = 1
	cfg.Canvas.MaxZoom = 0.5
	cfg.Canvas.DefaultZoom = 0.2
	cfg.Canvas.ZoomStep = 0.9
	cfg.Export.TrainPercent = -5

	cfg.Validate()
	assert.Equal(t, 1.0, cfg.Canvas.MinZoom)
	assert.Equal(t, canvas.DefaultMaxZoom, cfg.Canvas.MaxZoom)
	assert.Equal(t, 1.0, cfg.Canvas.DefaultZoom)
	assert.Equal(t, canvas.DefaultZoomStep, cfg.Canvas.ZoomStep)
	assert.Equal(t, canvas.DefaultHandleThreshold, cfg.Canvas.HandleThreshold)
	assert.Equal(t, canvas.DefaultMinBoxSize, cfg.Canvas.MinBoxSize)
	assert.Equal(t, DefaultClasses, cfg.Classes.Defaults)
	assert.Equal(t, 0.0, cfg.Export.TrainPercent)
	assert.Equal(t, 8, cfg.Images.CacheSize)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Canvas.Crosshair = false
	cfg.Classes.Defaults = []string{"boat"}
	cfg.Export.Seed = 7
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestCanvasOptions(t *testing.T) {
	opts := Default().CanvasOptions()
	assert.Equal(t, canvas.DefaultOptions(), opts)

	cfg := Default()
	cfg.Canvas.DefaultZoom = 1
	e := canvas.New(cfg.CanvasOptions())
	assert.Equal(t, 1.0, e.Options().InitialZoom)
}
