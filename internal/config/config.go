// Package config loads the LabelSense TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"labelsense/internal/canvas"

	"github.com/BurntSushi/toml"
)

const fileName = "config.toml"

// Config holds tuning for the canvas, the default class list, export
// defaults and the image cache. Fields may be loaded from a TOML file and
// overridden by command-line flags.
type Config struct {
	Canvas  CanvasConfig  `toml:"canvas"`
	Classes ClassesConfig `toml:"classes"`
	Export  ExportConfig  `toml:"export"`
	Images  ImagesConfig  `toml:"images"`
}

// CanvasConfig tunes the canvas engine.
type CanvasConfig struct {
	DefaultZoom     float64 `toml:"default_zoom"`
	MinZoom         float64 `toml:"min_zoom"`
	MaxZoom         float64 `toml:"max_zoom"`
	ZoomStep        float64 `toml:"zoom_step"`
	HandleThreshold float64 `toml:"handle_threshold"`
	MinBoxSize      float64 `toml:"min_box_size"`
	Crosshair       bool    `toml:"crosshair"`
}

// ClassesConfig seeds the class list of a new project.
type ClassesConfig struct {
	Defaults []string `toml:"defaults"`
}

// ExportConfig holds dataset export defaults.
type ExportConfig struct {
	TrainPercent float64 `toml:"train_percent"`
	Seed         uint64  `toml:"seed"` // 0 picks a random seed per export
}

// ImagesConfig tunes image decoding.
type ImagesConfig struct {
	CacheSize int `toml:"cache_size"`
}

// DefaultClasses is the class list used when nothing else is configured.
var DefaultClasses = []string{"Military Helicopter", "Helicopter", "Passenger Airplane", "SAM Site"}

// Default returns a Config populated with standard defaults.
func Default() *Config {
	return &Config{
		Canvas: CanvasConfig{
			DefaultZoom:     canvas.DefaultInitialZoom,
			MinZoom:         canvas.DefaultMinZoom,
			MaxZoom:         canvas.DefaultMaxZoom,
			ZoomStep:        canvas.DefaultZoomStep,
			HandleThreshold: canvas.DefaultHandleThreshold,
			MinBoxSize:      canvas.DefaultMinBoxSize,
			Crosshair:       true,
		},
		Classes: ClassesConfig{Defaults: slices.Clone(DefaultClasses)},
		Export:  ExportConfig{TrainPercent: 80},
		Images:  ImagesConfig{CacheSize: 8},
	}
}

// DefaultPath returns ~/.config/labelsense/config.toml (or the platform
// equivalent).
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "labelsense", fileName)
}

// Validate clamps values to safe ranges.
func (c *Config) Validate() {
	d := Default()
	cv := &c.Canvas
	if cv.MinZoom <= 0 {
		cv.MinZoom = d.Canvas.MinZoom
	}
	if cv.MaxZoom < cv.MinZoom {
		cv.MaxZoom = max(d.Canvas.MaxZoom, cv.MinZoom)
	}
	if cv.DefaultZoom <= 0 {
		cv.DefaultZoom = d.Canvas.DefaultZoom
	}
	cv.DefaultZoom = min(max(cv.DefaultZoom, cv.MinZoom), cv.MaxZoom)
	if cv.ZoomStep <= 1 {
		cv.ZoomStep = d.Canvas.ZoomStep
	}
	if cv.HandleThreshold <= 0 {
		cv.HandleThreshold = d.Canvas.HandleThreshold
	}
	if cv.MinBoxSize <= 0 {
		cv.MinBoxSize = d.Canvas.MinBoxSize
	}

	if len(c.Classes.Defaults) == 0 {
		c.Classes.Defaults = d.Classes.Defaults
	}

	c.Export.TrainPercent = min(max(c.Export.TrainPercent, 0), 100)

	if c.Images.CacheSize <= 0 {
		c.Images.CacheSize = d.Images.CacheSize
	}
}

// Load reads configuration from the given TOML file. A missing file yields
// the defaults. Keys absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Default(), fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Default(), fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
	}
	cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in TOML format.
func (c *Config) Save(path string) error {
	c.Validate()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// CanvasOptions converts the [canvas] section to engine options.
func (c *Config) CanvasOptions() canvas.Options {
	return canvas.Options{
		MinZoom:         c.Canvas.MinZoom,
		MaxZoom:         c.Canvas.MaxZoom,
		InitialZoom:     c.Canvas.DefaultZoom,
		ZoomStep:        c.Canvas.ZoomStep,
		HandleThreshold: c.Canvas.HandleThreshold,
		MinBoxSize:      c.Canvas.MinBoxSize,
	}
}
