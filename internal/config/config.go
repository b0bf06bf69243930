package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Planner PlannerRuntimeConfig `toml:"planner"`
	Raw     map[string]any       `toml:"-"`
	Path    string               `toml:"-"`
}

type PlannerRuntimeConfig struct {
	Addr                   string `toml:"addr"`
	DBPath                 string `toml:"db_path"`
	TickIntervalMS         int    `toml:"tick_interval_ms"`
	FrameProcessingLimitMS int    `toml:"frame_processing_limit_ms"`
	NodeDepthLimit         int    `toml:"node_depth_limit"`
	DisablePrioritySort    bool   `toml:"disable_priority_sort"`
	BusBuffer              int    `toml:"bus_buffer"`
}

func Load(path string) (Config, error) {
	resolved := path
	if resolved == "" {
		resolved = defaultConfigPath()
	}
	if strings.HasPrefix(resolved, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed := strings.TrimPrefix(resolved, "~")
		trimmed = strings.TrimPrefix(trimmed, "\\")
		trimmed = strings.TrimPrefix(trimmed, "/")
		resolved = filepath.Join(home, trimmed)
	}
	resolved = filepath.Clean(resolved)

	bytes, err := os.ReadFile(resolved)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(bytes), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}
	var raw map[string]any
	if _, err := toml.Decode(string(bytes), &raw); err != nil {
		return Config{}, fmt.Errorf("decode raw config: %w", err)
	}
	cfg.Raw = raw
	cfg.Path = resolved
	return cfg, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".planforge/config.toml"
	}
	return filepath.Join(home, ".planforge", "config.toml")
}
