// Package config loads the provider's YAML configuration file, following
// the same gopkg.in/yaml.v3-backed struct-tag loading style
// latentloop-latentfs uses for its own daemon config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCacheTTL is applied when cache_ttl is absent from the file (spec
// §6.3: "default 1 hour").
const DefaultCacheTTL = time.Hour

// Config holds the four recognized options (spec §6.3).
type Config struct {
	// InstancePath is the root directory of the object store. Required.
	InstancePath string `yaml:"instance_path"`
	// VirtualRoot is the absolute directory path to become the
	// projection root. Required.
	VirtualRoot string `yaml:"virtual_root"`
	// CacheTTL applies to all three cache maps.
	CacheTTL Duration `yaml:"cache_ttl"`
	// Debug enables verbose tracing.
	Debug bool `yaml:"debug"`
}

// Duration wraps time.Duration so cache_ttl can be written as "1h30m" in
// YAML rather than a raw nanosecond count.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string ("90m") or a plain integer
// number of nanoseconds.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid cache_ttl %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := unmarshal(&ns); err != nil {
		return err
	}
	*d = Duration(ns)
	return nil
}

// Load reads and validates a YAML config file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.applyDefaults()
	return c, c.Validate()
}

func (c *Config) applyDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = Duration(DefaultCacheTTL)
	}
}

// Validate reports the required fields being empty.
func (c Config) Validate() error {
	if c.InstancePath == "" {
		return fmt.Errorf("config: instance_path is required")
	}
	if c.VirtualRoot == "" {
		return fmt.Errorf("config: virtual_root is required")
	}
	return nil
}
