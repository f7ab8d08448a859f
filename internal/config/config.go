// Package config loads the daemon's YAML configuration file, following the
// same struct-tag/Load-then-default pattern the teacher's own config
// package uses.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server and CLI need beyond what a single
// flag conveys.
type Config struct {
	AppName string `yaml:"app_name"`
	Debug   bool   `yaml:"debug"`

	Port     int    `yaml:"port"`
	DataDir  string `yaml:"data_dir"`
	CacheDir string `yaml:"cache_dir"`

	PoolSize int `yaml:"pool_size"`
}

// DefaultPort is applied when neither the config file nor --port set one.
const DefaultPort = 5555

// DefaultPoolSize is applied when the config file doesn't set pool_size.
const DefaultPoolSize = 5

// Load reads filename and applies defaults for anything left zero-valued.
// A missing file is not an error — the CLI's flags and the XDG-derived
// paths are enough to run with no config file at all — but a malformed
// one is.
func Load(filename string) (*Config, error) {
	config := &Config{AppName: "meshd"}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(config)
			return config, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", filename, err)
	}

	applyDefaults(config)
	return config, nil
}

func applyDefaults(c *Config) {
	if c.AppName == "" {
		c.AppName = "meshd"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
}
