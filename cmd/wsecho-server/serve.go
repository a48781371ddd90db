package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/wsecho/internal/config"
	"github.com/muurk/wsecho/internal/discovery"
	"github.com/muurk/wsecho/internal/echo"
	"github.com/muurk/wsecho/internal/feed"
	"github.com/muurk/wsecho/internal/logging"
	"github.com/muurk/wsecho/internal/metrics"
	"github.com/muurk/wsecho/internal/server"
	"github.com/muurk/wsecho/internal/version"
)

// serveOptions holds the flag values; only flags the user set are applied
type serveOptions struct {
	addr            string
	engine          string
	wsPath          string
	prefix          string
	maxMessageBytes int
	chunkSize       int
	idleTimeout     time.Duration
	allowedOrigins  []string
	captureDir      string
	feedURL         string
	feedPath        string
	feedTimeout     time.Duration
	metrics         bool
	metricsPath     string
	mdns            bool
	mdnsInstance    string
	logLevel        string
	logFormat       string
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the echo server",
	Long: `Start the WebSocket echo server.

Flags override the config file and WSECHO_* environment variables. Without a
config file the server listens on :8080 with the gorilla engine.

The raw engine hijacks the HTTP connection and parses frames itself; it is
useful for inspecting exactly what a client puts on the wire.`,
	Example: `  # Start with defaults
  wsecho-server serve

  # Raw frame engine with debug logging
  wsecho-server serve --engine raw --log-level debug

  # Custom prefix and a 1 MiB message limit
  wsecho-server serve --prefix "You said: " --max-message-bytes 1048576

  # Capture every message to JSONL and announce via mDNS
  wsecho-server serve --capture-dir ./captures --mdns`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.addr, "addr", ":8080", "Listen address")
	f.StringVar(&serveOpts.engine, "engine", server.EngineGorilla, "WebSocket engine (gorilla, raw)")
	f.StringVar(&serveOpts.wsPath, "ws-path", "/ws", "WebSocket path")
	f.StringVar(&serveOpts.prefix, "prefix", echo.DefaultPrefix, "Reply prefix")
	f.IntVar(&serveOpts.maxMessageBytes, "max-message-bytes", echo.DefaultMaxMessageBytes, "Largest accepted message; larger ones close with 1009")
	f.IntVar(&serveOpts.chunkSize, "chunk-size", echo.DefaultChunkSize, "Read buffer size")
	f.DurationVar(&serveOpts.idleTimeout, "idle-timeout", 60*time.Second, "Close connections idle for this long")
	f.StringSliceVar(&serveOpts.allowedOrigins, "allowed-origin", nil, "Extra allowed Origin host (repeatable, \"*\" allows any)")
	f.StringVar(&serveOpts.captureDir, "capture-dir", "", "Directory for JSONL message capture (disabled if empty)")
	f.StringVar(&serveOpts.feedURL, "feed-url", feed.DefaultURL, "Upstream RSS feed")
	f.StringVar(&serveOpts.feedPath, "feed-path", "/rss", "Path of the RSS proxy")
	f.DurationVar(&serveOpts.feedTimeout, "feed-timeout", feed.DefaultTimeout, "Upstream request timeout")
	f.BoolVar(&serveOpts.metrics, "metrics", true, "Serve Prometheus metrics")
	f.StringVar(&serveOpts.metricsPath, "metrics-path", "/metrics", "Path of the metrics endpoint")
	f.BoolVar(&serveOpts.mdns, "mdns", false, "Announce the server via mDNS")
	f.StringVar(&serveOpts.mdnsInstance, "mdns-instance", "", "mDNS instance name (default: wsecho-<hostname>)")
	f.StringVar(&serveOpts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&serveOpts.logFormat, "log-format", "console", "Log format (console, json)")
}

// applyFlags copies every flag the user set onto cfg
func applyFlags(cmd *cobra.Command, opts *serveOptions, cfg *config.Config) {
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}

	set("addr", func() { cfg.Server.Addr = opts.addr })
	set("engine", func() { cfg.Server.Engine = opts.engine })
	set("ws-path", func() { cfg.Server.WSPath = opts.wsPath })
	set("prefix", func() { cfg.Echo.Prefix = opts.prefix })
	set("max-message-bytes", func() { cfg.Echo.MaxMessageBytes = opts.maxMessageBytes })
	set("chunk-size", func() { cfg.Echo.ChunkSize = opts.chunkSize })
	set("idle-timeout", func() { cfg.Server.IdleTimeout = opts.idleTimeout })
	set("allowed-origin", func() { cfg.Server.AllowedOrigins = opts.allowedOrigins })
	set("capture-dir", func() { cfg.Server.CaptureDir = opts.captureDir })
	set("feed-url", func() { cfg.Feed.URL = opts.feedURL })
	set("feed-path", func() { cfg.Feed.Path = opts.feedPath })
	set("feed-timeout", func() { cfg.Feed.Timeout = opts.feedTimeout })
	set("metrics", func() { cfg.Metrics.Enabled = opts.metrics })
	set("metrics-path", func() { cfg.Metrics.Path = opts.metricsPath })
	set("mdns", func() { cfg.Discovery.Enabled = opts.mdns })
	set("mdns-instance", func() { cfg.Discovery.Instance = opts.mdnsInstance })
	set("log-level", func() { cfg.Log.Level = opts.logLevel })
	set("log-format", func() { cfg.Log.Format = opts.logFormat })
}

// loadConfig resolves the effective configuration for serve
func loadConfig(cmd *cobra.Command, opts *serveOptions) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, opts, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// serverConfig maps the file/env/flag configuration onto the server's
func serverConfig(cfg *config.Config) *server.Config {
	sc := &server.Config{
		Addr:            cfg.Server.Addr,
		WSPath:          cfg.Server.WSPath,
		FeedPath:        cfg.Feed.Path,
		Engine:          cfg.Server.Engine,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxMessageBytes: cfg.Echo.MaxMessageBytes,
		ChunkSize:       cfg.Echo.ChunkSize,
		IdleTimeout:     cfg.Server.IdleTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		CloseTimeout:    cfg.Server.CloseTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CaptureDir:      cfg.Server.CaptureDir,
	}
	if cfg.Metrics.Enabled {
		sc.MetricsPath = cfg.Metrics.Path
	}
	return sc
}

// buildServer wires the server and its dependencies. The outbound HTTP
// client is created once here and shared by every feed request.
func buildServer(cfg *config.Config) (*server.Server, error) {
	httpClient := feed.NewHTTPClient(cfg.Feed.Timeout, cfg.Feed.MaxIdleConnsPerHost)
	fetcher := feed.NewFetcher(httpClient)
	fetcher.MaxBodyBytes = cfg.Feed.MaxBodyBytes
	fetcher.MaxRetries = cfg.Feed.MaxRetries
	fetcher.UserAgent = "wsecho-feed/" + version.Version

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(metrics.DefaultNamespace)
	}

	return server.New(serverConfig(cfg), server.Dependencies{
		Responder: echo.NewPrefixResponder(cfg.Echo.Prefix),
		Feed:      feed.NewHandler(fetcher, cfg.Feed.URL),
		Metrics:   m,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, &serveOpts)
	if err != nil {
		return err
	}

	if err := logging.InitializeWithFormat(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	defer logging.Sync()

	srv, err := buildServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	// Bind before announcing so the real port is known
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return srv.Start(ctx)
	})

	if cfg.Discovery.Enabled {
		port := 0
		if tcp, ok := srv.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
		announcement := discovery.Announcement{
			Instance: cfg.Discovery.Instance,
			Port:     port,
			Path:     cfg.Server.WSPath,
			Engine:   cfg.Server.Engine,
			Version:  version.Version,
		}
		g.Go(func() error {
			if err := discovery.Run(ctx, announcement); err != nil {
				// The echo service keeps running without mDNS
				logging.Warn("mDNS announcement not started", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		return stopSignalHandler(ctx, cancel)
	})

	if err := g.Wait(); err != nil {
		logging.Error("wsecho-server terminated with error", zap.Error(err))
		return err
	}
	logging.Info("wsecho-server stopped")
	return nil
}

func stopSignalHandler(ctx context.Context, cancel context.CancelFunc) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		logging.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		return nil
	case <-ctx.Done():
		return nil
	}
}
