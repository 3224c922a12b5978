package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Upstream.HTTP = "http://localhost:3000/rpc"
	cfg.SetDefaults()
	return cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q, want 127.0.0.1:8080", cfg.Server.HTTPAddr)
	}
	if cfg.Server.Path != "/rpc" {
		t.Errorf("Path = %q, want /rpc", cfg.Server.Path)
	}
	if cfg.Server.CallTimeout != "30s" {
		t.Errorf("CallTimeout = %q, want 30s", cfg.Server.CallTimeout)
	}
	if cfg.Server.MaxBodyBytes != 4<<20 {
		t.Errorf("MaxBodyBytes = %d, want %d", cfg.Server.MaxBodyBytes, 4<<20)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Upstream.HTTPTimeout != "30s" {
		t.Errorf("HTTPTimeout = %q, want 30s", cfg.Upstream.HTTPTimeout)
	}

	// Defaults never overwrite explicit values.
	cfg = &Config{}
	cfg.Server.HTTPAddr = ":9090"
	cfg.SetDefaults()
	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("explicit HTTPAddr overwritten: %q", cfg.Server.HTTPAddr)
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v, want nil", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "bad listen address",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "not an address" },
			wantSub: "host:port",
		},
		{
			name:    "path without leading slash",
			mutate:  func(c *Config) { c.Server.Path = "rpc" },
			wantSub: "absolute path",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantSub: "one of",
		},
		{
			name:    "bad upstream URL",
			mutate:  func(c *Config) { c.Upstream.HTTP = "not a url" },
			wantSub: "URL",
		},
		{
			name: "http and command both set",
			mutate: func(c *Config) {
				c.Upstream.Command = "/usr/bin/server"
			},
			wantSub: "not both",
		},
		{
			name:    "unparseable call timeout",
			mutate:  func(c *Config) { c.Server.CallTimeout = "soon" },
			wantSub: "call_timeout",
		},
		{
			name:    "unparseable upstream timeout",
			mutate:  func(c *Config) { c.Upstream.HTTPTimeout = "whenever" },
			wantSub: "http_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.CallTimeout = "250ms"
	cfg.Upstream.HTTPTimeout = "1m"

	if got := cfg.CallTimeout(); got != 250*time.Millisecond {
		t.Errorf("CallTimeout() = %v, want 250ms", got)
	}
	if got := cfg.UpstreamHTTPTimeout(); got != time.Minute {
		t.Errorf("UpstreamHTTPTimeout() = %v, want 1m", got)
	}

	// Garbage falls back to the default rather than zero.
	cfg.Server.CallTimeout = "garbage"
	if got := cfg.CallTimeout(); got != 30*time.Second {
		t.Errorf("CallTimeout() fallback = %v, want 30s", got)
	}
}

func TestHasUpstream(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	if cfg.HasUpstream() {
		t.Error("empty upstream reported as configured")
	}
	cfg.Upstream.Command = "/usr/bin/server"
	if !cfg.HasUpstream() {
		t.Error("command upstream not reported as configured")
	}
}

func TestFindConfigFileInPaths(t *testing.T) {
	dir := t.TempDir()
	if got := findConfigFileInPaths([]string{dir}); got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want \"\"", got)
	}

	path := filepath.Join(dir, "rpc-bridge.yaml")
	if err := os.WriteFile(path, []byte("server:\n  path: /rpc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := findConfigFileInPaths([]string{dir}); got != path {
		t.Errorf("findConfigFileInPaths() = %q, want %q", got, path)
	}
}
