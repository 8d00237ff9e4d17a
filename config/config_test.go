package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "info" || cfg.Directory.TTL != 10 || cfg.Directory.Enabled() {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binder.toml")
	data := `
[log]
level = "debug"
development = true

[dispatch]
timing = true
rate_limit = 50.0
burst = 10

[directory]
endpoints = ["127.0.0.1:2379"]
process = "app-1"
dial_timeout = "2s"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Log.Development || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log section %+v", cfg.Log)
	}
	if !cfg.Dispatch.Timing || cfg.Dispatch.RateLimit != 50 || cfg.Dispatch.Burst != 10 {
		t.Fatalf("unexpected dispatch section %+v", cfg.Dispatch)
	}
	if !cfg.Directory.Enabled() || cfg.Directory.Process != "app-1" {
		t.Fatalf("unexpected directory section %+v", cfg.Directory)
	}
	if cfg.Directory.Prefix != "/native-binder/" {
		t.Fatalf("expect default prefix kept, got %q", cfg.Directory.Prefix)
	}
	if cfg.Directory.DialTimeout.Duration != 2*time.Second {
		t.Fatalf("expect 2s dial timeout, got %s", cfg.Directory.DialTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expect error for missing file")
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"syntax", "[log", "parse failed"},
		{"unknown key", "[log]\ncolour = true", "unknown keys"},
		{"bad level", "[log]\nlevel = \"loud\"", "log.level"},
		{"negative rate", "[dispatch]\nrate_limit = -1.0", "rate_limit"},
		{"rate without burst", "[dispatch]\nrate_limit = 5.0", "burst"},
		{"bad prefix", "[directory]\nendpoints = [\"x:1\"]\nprefix = \"nb\"", "prefix"},
		{"empty endpoint", "[directory]\nendpoints = [\" \"]", "endpoints[0]"},
		{"bad duration", "[directory]\ndial_timeout = \"soon\"", "parse failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expect error containing %q, got %v", tc.want, err)
			}
		})
	}
}
