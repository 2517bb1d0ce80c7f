package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clamdscan.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Port != 3310 {
		t.Errorf("Port = %d, want 3310", cfg.Port)
	}
	if n, _ := cfg.chunkSizeBytes(); n != 131072 {
		t.Errorf("chunk size = %d, want 131072", n)
	}
	if n, _ := cfg.maxStreamSizeBytes(); n != 26214400 {
		t.Errorf("max stream size = %d, want 26214400", n)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		path := writeConfig(t, `
host: clamd.internal
port: 3311
chunk_size: 64KiB
max_stream_size: 100MiB
timeout: 45s
log_level: debug
concurrency: 8
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Host != "clamd.internal" {
			t.Errorf("Host = %q, want %q", cfg.Host, "clamd.internal")
		}
		if cfg.Port != 3311 {
			t.Errorf("Port = %d, want 3311", cfg.Port)
		}
		if cfg.Timeout != 45*time.Second {
			t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
		}
		if cfg.Concurrency != 8 {
			t.Errorf("Concurrency = %d, want 8", cfg.Concurrency)
		}
		if n, _ := cfg.chunkSizeBytes(); n != 64*1024 {
			t.Errorf("chunk size = %d, want %d", n, 64*1024)
		}
		if n, _ := cfg.maxStreamSizeBytes(); n != 100*1024*1024 {
			t.Errorf("max stream size = %d, want %d", n, 100*1024*1024)
		}
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, "host: 10.0.0.5\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Host != "10.0.0.5" {
			t.Errorf("Host = %q, want %q", cfg.Host, "10.0.0.5")
		}
		if cfg.Port != 3310 {
			t.Errorf("Port = %d, want 3310", cfg.Port)
		}
		if cfg.ChunkSize != "128KiB" {
			t.Errorf("ChunkSize = %q, want %q", cfg.ChunkSize, "128KiB")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Host != "localhost" {
			t.Errorf("Host = %q, want %q", cfg.Host, "localhost")
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "hots: typo\n"))
		if err == nil {
			t.Fatal("expected error for unknown key")
		}
	})

	t.Run("invalid size", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "chunk_size: lots\n"))
		if err == nil || !strings.Contains(err.Error(), "chunk_size") {
			t.Fatalf("expected chunk_size error, got: %v", err)
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "port: 0\n"))
		if err == nil {
			t.Fatal("expected error for port 0")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		if err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Host = "" }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"zero chunk size", func(c *Config) { c.ChunkSize = "0" }},
		{"bad max stream size", func(c *Config) { c.MaxStreamSize = "a lot" }},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	logger := logrus.New()

	t.Run("without proxy", func(t *testing.T) {
		opts, err := DefaultConfig().ClientOptions(logger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(opts) != 5 {
			t.Errorf("got %d options, want 5", len(opts))
		}
	})

	t.Run("socks5 proxy", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Proxy = "socks5://127.0.0.1:1080"
		opts, err := cfg.ClientOptions(logger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(opts) != 6 {
			t.Errorf("got %d options, want 6", len(opts))
		}
	})

	t.Run("unsupported proxy scheme", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Proxy = "gopher://127.0.0.1:70"
		if _, err := cfg.ClientOptions(logger); err == nil {
			t.Error("expected error for unsupported proxy scheme")
		}
	})
}
