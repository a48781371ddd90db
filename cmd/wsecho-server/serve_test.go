package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/config"
)

// newServeCmd returns a fresh serve command so flag state does not leak between tests
func newServeCmd(opts *serveOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "serve"}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", ":8080", "")
	f.StringVar(&opts.engine, "engine", "gorilla", "")
	f.StringVar(&opts.prefix, "prefix", "Echo ", "")
	f.IntVar(&opts.maxMessageBytes, "max-message-bytes", 65536, "")
	f.StringSliceVar(&opts.allowedOrigins, "allowed-origin", nil, "")
	f.BoolVar(&opts.metrics, "metrics", true, "")
	f.StringVar(&opts.logLevel, "log-level", "info", "")
	return cmd
}

func TestApplyFlags_OnlyChanged(t *testing.T) {
	var opts serveOptions
	cmd := newServeCmd(&opts)
	if err := cmd.Flags().Parse([]string{"--engine", "raw", "--allowed-origin", "a.example", "--metrics=false"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Server.Addr = ":9999"      // from the config file
	cfg.Echo.Prefix = "from file " // from the config file

	applyFlags(cmd, &opts, cfg)

	if cfg.Server.Engine != "raw" {
		t.Errorf("Engine = %q, want flag value raw", cfg.Server.Engine)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be turned off by --metrics=false")
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "a.example" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	// Flag defaults must not clobber configured values
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Addr = %q, unset flag overrode the config file", cfg.Server.Addr)
	}
	if cfg.Echo.Prefix != "from file " {
		t.Errorf("Prefix = %q, unset flag overrode the config file", cfg.Echo.Prefix)
	}
}

func TestServerConfig_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false

	if sc := serverConfig(cfg); sc.MetricsPath != "" {
		t.Errorf("MetricsPath = %q, want empty when metrics are disabled", sc.MetricsPath)
	}
}

func TestBuildServer(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, "<rss version=\"2.0\"></rss>")
	}))
	defer upstream.Close()

	cfg := config.Default()
	cfg.Feed.URL = upstream.URL
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	srv, err := buildServer(cfg)
	if err != nil {
		t.Fatalf("buildServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/healthz", http.StatusOK, `"status":"ok"`},
		{"/rss", http.StatusOK, "<rss"},
		{"/metrics", http.StatusOK, "wsecho_active_connections"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s error = %v", tt.path, err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("GET %s body missing %q:\n%s", tt.path, tt.wantBody, body)
			}
		})
	}
}

func TestBuildServer_FeedUnreachable(t *testing.T) {
	// Reserve a port and release it so nothing is listening there
	closed := httptest.NewServer(http.NotFoundHandler())
	deadURL := closed.URL
	closed.Close()

	cfg := config.Default()
	cfg.Feed.URL = deadURL

	srv, err := buildServer(cfg)
	if err != nil {
		t.Fatalf("buildServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(ts.URL + "/rss")
	if err != nil {
		t.Fatalf("GET /rss error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("GET /rss status = %d, want %d", resp.StatusCode, http.StatusBadGateway)
	}
}
