// Package config loads the hub's YAML configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the hub's configuration: the listen address, and, for
// bridged mode, the upstream link the hub tunnels App traffic through.
type Config struct {
	Host           string            `yaml:"host"`
	Port           int               `yaml:"port"`
	LinkClientName string            `yaml:"link_client_name"`
	LinkToHost     string            `yaml:"link_to_host"`
	Debug          bool              `yaml:"debug"`
	Extra          map[string]string `yaml:"extra"`
}

// Default returns a Config with sane listen defaults and no bridge.
func Default() *Config {
	return &Config{
		Host: "0.0.0.0",
		Port: 8080,
	}
}

// Load reads and parses a YAML config file, starting from Default() so
// unset fields keep their defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	return cfg, nil
}

// Bridged reports whether this config names an upstream hub to tunnel
// App traffic through.
func (c *Config) Bridged() bool {
	return c.LinkClientName != "" && c.LinkToHost != ""
}

// Addr is the host:port the hub listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
