// Package server hosts the WebSocket echo endpoint.
//
// The server owns one HTTP listener with a single upgrade path. Each accepted
// connection is handed to echo.Handler.Serve on its own goroutine and tracked
// until it closes, so Shutdown can cancel and wait for all of them.
//
// # Engines
//
// Two transports implement echo.Conn:
//   - gorilla (default): gorilla/websocket Upgrader; message chunks are read
//     from NextReader and gorilla answers ping and close frames itself
//   - raw: the request is validated and hijacked, the 101 response is written
//     with Sec-WebSocket-Accept, and frames are parsed with internal/frame
//
// # Endpoints
//
//	GET /ws       WebSocket upgrade (text messages only)
//	GET /rss      RSS proxy (when a feed handler is configured)
//	GET /metrics  Prometheus exposition (when metrics are enabled)
//	GET /healthz  {"status":"ok","active_connections":N}
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{
//	    Addr:     ":8080",
//	    WSPath:   "/ws",
//	    FeedPath: "/rss",
//	    Engine:   server.EngineGorilla,
//	}, server.Dependencies{
//	    Feed:    feed.NewHandler(fetcher, feedURL),
//	    Metrics: metrics.New(""),
//	})
//	if err != nil {
//	    return err
//	}
//
//	// Start blocks until ctx is cancelled
//	return srv.Start(ctx)
//
// # Message Capture
//
// When CaptureDir is set, every assembled message is appended to
// capture-YYYYMMDD.jsonl in that directory, one JSON object per line.
//
// # Graceful Shutdown
//
//  1. Stop accepting new connections
//  2. Cancel every connection handler, which closes with 1001 going away
//  3. Wait up to ShutdownTimeout for the close handshakes
//  4. Force-close whatever is still open
package server
