package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/muurk/wsecho/internal/logging"
)

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Addr == "" {
		fail("server.addr must not be empty")
	}
	switch c.Server.Engine {
	case "gorilla", "raw":
	default:
		fail("server.engine %q is not one of gorilla, raw", c.Server.Engine)
	}

	positive := []struct {
		name  string
		value int64
	}{
		{"echo.max_message_bytes", int64(c.Echo.MaxMessageBytes)},
		{"echo.chunk_size", int64(c.Echo.ChunkSize)},
		{"server.idle_timeout", int64(c.Server.IdleTimeout)},
		{"server.write_timeout", int64(c.Server.WriteTimeout)},
		{"server.close_timeout", int64(c.Server.CloseTimeout)},
		{"server.shutdown_timeout", int64(c.Server.ShutdownTimeout)},
		{"feed.timeout", int64(c.Feed.Timeout)},
		{"feed.max_body_bytes", c.Feed.MaxBodyBytes},
	}
	for _, p := range positive {
		if p.value <= 0 {
			fail("%s must be positive", p.name)
		}
	}
	if c.Feed.MaxRetries < 0 {
		fail("feed.max_retries must not be negative")
	}

	paths := map[string]string{}
	checkPath := func(name, p string) {
		if !strings.HasPrefix(p, "/") {
			fail("%s %q must start with /", name, p)
			return
		}
		if other, dup := paths[p]; dup {
			fail("%s %q is already used by %s", name, p, other)
			return
		}
		paths[p] = name
	}
	checkPath("server.ws_path", c.Server.WSPath)
	checkPath("feed.path", c.Feed.Path)
	if c.Metrics.Enabled {
		checkPath("metrics.path", c.Metrics.Path)
	}
	if _, dup := paths["/healthz"]; dup {
		fail("/healthz is reserved for the health check")
	}

	if u, err := url.Parse(c.Feed.URL); err != nil || c.Feed.URL == "" {
		fail("feed.url %q is not a valid URL", c.Feed.URL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		fail("feed.url %q must use http or https", c.Feed.URL)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		fail("log.format %q is not one of console, json", c.Log.Format)
	}

	return errors.Join(errs...)
}
