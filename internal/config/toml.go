// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	API       APIConfig       `toml:"api"`
	Interview InterviewConfig `toml:"interview"`
}

// APIConfig maps backend connection settings.
type APIConfig struct {
	BaseURL   *string `toml:"base-url"`
	Timeout   *string `toml:"timeout"`
	TestMode  *bool   `toml:"test-mode"`
	ReturnURL *string `toml:"return-url"`
}

// InterviewConfig maps interview defaults.
type InterviewConfig struct {
	Specialization *string `toml:"specialization"`
	TimeLimit      *int    `toml:"time-limit"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
