// Package config loads the bridge's TOML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration file.
type Config struct {
	Log       Log       `toml:"log"`
	Dispatch  Dispatch  `toml:"dispatch"`
	Directory Directory `toml:"directory"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Dispatch configures the middleware chain of a dispatcher.
type Dispatch struct {
	Timing    bool    `toml:"timing"`
	RateLimit float64 `toml:"rate_limit"` // calls per second, 0 disables
	Burst     int     `toml:"burst"`
}

// Directory configures the optional etcd channel directory. It is disabled
// when Endpoints is empty.
type Directory struct {
	Endpoints   []string `toml:"endpoints"`
	Prefix      string   `toml:"prefix"`
	TTL         int64    `toml:"ttl"`
	Process     string   `toml:"process"`
	DialTimeout Duration `toml:"dial_timeout"`
}

// Enabled reports whether a directory should be used.
func (d Directory) Enabled() bool {
	return len(d.Endpoints) > 0
}

// Duration reads TOML strings such as "5s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() Config {
	return Config{
		Log: Log{Level: "info"},
		Directory: Directory{
			Prefix:      "/native-binder/",
			TTL:         10,
			Process:     "binderctl",
			DialTimeout: Duration{5 * time.Second},
		},
	}
}

// Load reads and validates the file at path. Keys missing from the file keep
// their Default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates TOML data on top of Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse failed: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var logLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
	"dpanic": true, "panic": true, "fatal": true,
}

func Validate(cfg Config) error {
	if !logLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("log.level %q is not a zap level", cfg.Log.Level)
	}
	if cfg.Dispatch.RateLimit < 0 {
		return fmt.Errorf("dispatch.rate_limit must not be negative")
	}
	if cfg.Dispatch.RateLimit > 0 && cfg.Dispatch.Burst < 1 {
		return fmt.Errorf("dispatch.burst must be at least 1 when rate_limit is set")
	}
	if cfg.Directory.Enabled() {
		for i, ep := range cfg.Directory.Endpoints {
			if strings.TrimSpace(ep) == "" {
				return fmt.Errorf("directory.endpoints[%d] is empty", i)
			}
		}
		if !strings.HasPrefix(cfg.Directory.Prefix, "/") || !strings.HasSuffix(cfg.Directory.Prefix, "/") {
			return fmt.Errorf("directory.prefix %q must start and end with /", cfg.Directory.Prefix)
		}
		if cfg.Directory.TTL < 1 {
			return fmt.Errorf("directory.ttl must be at least 1 second")
		}
		if strings.TrimSpace(cfg.Directory.Process) == "" {
			return fmt.Errorf("directory.process is required")
		}
	}
	return nil
}
