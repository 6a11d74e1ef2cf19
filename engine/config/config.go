package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the engine's startup settings, loaded from a TOML file
// with sensible defaults for anything the file omits.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Bindless BindlessConfig `toml:"bindless"`
	Importer ImporterConfig `toml:"importer"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type RendererConfig struct {
	// PresentMode is "fifo" (vsync), "mailbox" or "immediate".
	PresentMode string `toml:"present_mode"`
}

type BindlessConfig struct {
	InitialCapacity int `toml:"initial_capacity"`
	MaxSlots        int `toml:"max_slots"`
}

type ImporterConfig struct {
	DecodeWorkers int `toml:"decode_workers"`
}

// Load reads a TOML config file, overlaying it on the defaults.
//
// Parameters:
//   - path: the config file path.
//
// Returns:
//   - *Config: the merged configuration.
//   - error: file or parse failure, wrapped with the path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration used when no file is given.
//
// Returns:
//   - *Config: the default configuration.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "lumen editor",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			PresentMode: "fifo",
		},
		Bindless: BindlessConfig{
			InitialCapacity: 64,
			MaxSlots:        4096,
		},
		Importer: ImporterConfig{
			DecodeWorkers: 4,
		},
	}
}
