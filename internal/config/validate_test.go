package config

import (
	"strings"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		errPart string
	}{
		{"unknown engine", func(c *Config) { c.Server.Engine = "netty" }, "server.engine"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"zero max message", func(c *Config) { c.Echo.MaxMessageBytes = 0 }, "echo.max_message_bytes"},
		{"negative chunk size", func(c *Config) { c.Echo.ChunkSize = -1 }, "echo.chunk_size"},
		{"zero idle timeout", func(c *Config) { c.Server.IdleTimeout = 0 }, "server.idle_timeout"},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "server.shutdown_timeout"},
		{"negative retries", func(c *Config) { c.Feed.MaxRetries = -1 }, "feed.max_retries"},
		{"relative ws path", func(c *Config) { c.Server.WSPath = "ws" }, "must start with /"},
		{"duplicate path", func(c *Config) { c.Feed.Path = "/ws" }, "already used"},
		{"reserved health path", func(c *Config) { c.Metrics.Path = "/healthz" }, "reserved"},
		{"empty feed url", func(c *Config) { c.Feed.URL = "" }, "feed.url"},
		{"ftp feed url", func(c *Config) { c.Feed.URL = "ftp://example.com/rss" }, "http or https"},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }, "unknown log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("Validate() = %v, want containing %q", err, tt.errPart)
			}
		})
	}
}

func TestValidate_MetricsPathIgnoredWhenDisabled(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Path = "/ws"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, metrics path should not matter when disabled", err)
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.Engine = "netty"
	cfg.Echo.ChunkSize = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	for _, part := range []string{"server.engine", "echo.chunk_size"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("Validate() = %v, missing %q", err, part)
		}
	}
}
