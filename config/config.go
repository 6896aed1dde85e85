// Package config is the YAML config format for devauthd, grounded on
// cmd/dex/config.go: plain structs tagged with `json`, parsed through
// ghodss/yaml (which converts YAML to JSON before unmarshaling, so struct
// tags only ever need the one json flavor).
package config

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Config is the top-level devauthd config file format.
type Config struct {
	// LocalUDID identifies this device; the peer-to-peer variant uses it
	// as the self-reference guard in bind flows.
	LocalUDID string `json:"localUdid"`

	Storage StorageConfig `json:"storage"`
	Logger  LoggerConfig  `json:"logger"`
	Queue   QueueConfig   `json:"queue"`
}

// StorageConfig names the single TLV file the trust store persists to. An
// empty Path means in-memory only (tests, or an ephemeral deployment).
type StorageConfig struct {
	Path string `json:"path"`
}

// LoggerConfig mirrors cmd/dex/config.go's Logger block.
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// QueueConfig tunes the TaskQueue's backlog depth.
type QueueConfig struct {
	Depth int `json:"depth"`
}

// Load parses raw YAML bytes into a Config and fills in defaults.
func Load(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}
	if c.Queue.Depth == 0 {
		c.Queue.Depth = 64
	}
}

// Validate checks the fast, cheap invariants before anything tries to use
// the config, the way cmd/dex/config.go's Config.Validate does.
func (c Config) Validate() error {
	checks := []struct {
		bad    bool
		errMsg string
	}{
		{c.LocalUDID == "", "no localUdid specified in config file"},
		{c.Logger.Level != "debug" && c.Logger.Level != "info" && c.Logger.Level != "warn" && c.Logger.Level != "error",
			"invalid logger level: " + c.Logger.Level},
		{c.Logger.Format != "text" && c.Logger.Format != "json", "invalid logger format: " + c.Logger.Format},
		{c.Queue.Depth < 0, "queue depth cannot be negative"},
	}
	for _, check := range checks {
		if check.bad {
			return fmt.Errorf("invalid config: %s", check.errMsg)
		}
	}
	return nil
}
