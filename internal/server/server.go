package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/echo"
	"github.com/muurk/wsecho/internal/logging"
	"github.com/muurk/wsecho/internal/metrics"
)

// Transport engines
const (
	EngineGorilla = "gorilla"
	EngineRaw     = "raw"
)

const (
	// DefaultShutdownTimeout bounds how long Shutdown waits for connections to close
	DefaultShutdownTimeout = 10 * time.Second

	// HealthPath serves the liveness probe
	HealthPath = "/healthz"
)

// Config holds the server configuration
type Config struct {
	Addr            string   // Listen address, e.g. ":8080" (port 0 picks a free port)
	WSPath          string   // WebSocket upgrade path
	FeedPath        string   // RSS proxy path (empty = disabled)
	MetricsPath     string   // Prometheus path (empty = disabled)
	Engine          string   // EngineGorilla or EngineRaw
	AllowedOrigins  []string // Extra origins allowed to connect ("*" = any)
	MaxMessageBytes int
	ChunkSize       int
	IdleTimeout     time.Duration
	WriteTimeout    time.Duration
	CloseTimeout    time.Duration
	ShutdownTimeout time.Duration
	CaptureDir      string // Directory for message capture files (empty = disabled)
}

// Dependencies are the collaborators the server is wired with
type Dependencies struct {
	Responder echo.Responder   // nil = "Echo " prefix
	Feed      http.Handler     // served at FeedPath
	Metrics   *metrics.Metrics // nil = no instrumentation
}

// wsConn is what the host needs from a transport besides echo.Conn
type wsConn interface {
	echo.Conn
	netConn() net.Conn
}

// Server hosts the WebSocket echo endpoint and the auxiliary HTTP endpoints
type Server struct {
	config     *Config
	deps       Dependencies
	handler    *echo.Handler
	upgrader   websocket.Upgrader
	origins    *OriginChecker
	capture    *captureWriter
	httpServer *http.Server
	listener   net.Listener

	// Base context of every connection handler; cancelled on shutdown
	baseCtx context.Context
	cancel  context.CancelFunc

	wg          sync.WaitGroup
	mu          sync.Mutex
	closing     bool
	activeConns map[string]net.Conn

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a new Server instance
func New(config *Config, deps Dependencies) (*Server, error) {
	if config.WSPath == "" {
		config.WSPath = "/ws"
	}
	if config.Engine == "" {
		config.Engine = EngineGorilla
	}
	if config.Engine != EngineGorilla && config.Engine != EngineRaw {
		return nil, fmt.Errorf("unknown engine %q (expected %s or %s)", config.Engine, EngineGorilla, EngineRaw)
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = echo.DefaultChunkSize
	}
	if config.MaxMessageBytes <= 0 {
		config.MaxMessageBytes = echo.DefaultMaxMessageBytes
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 60 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = echo.DefaultCloseTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	capture, err := newCaptureWriter(config.CaptureDir)
	if err != nil {
		return nil, err
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:      config,
		deps:        deps,
		origins:     NewOriginChecker(config.AllowedOrigins),
		capture:     capture,
		baseCtx:     baseCtx,
		cancel:      cancel,
		activeConns: make(map[string]net.Conn),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.ChunkSize,
		WriteBufferSize: config.ChunkSize,
		CheckOrigin:     s.origins.Check,
	}

	s.handler = echo.NewHandler(echo.Config{
		MaxMessageBytes: config.MaxMessageBytes,
		ChunkSize:       config.ChunkSize,
		CloseTimeout:    config.CloseTimeout,
	}, deps.Responder, echo.Hooks{
		OnMessage: s.onMessage,
		OnClose:   s.onClose,
	})

	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.WSPath, s.upgradeHandler)
	mux.HandleFunc(HealthPath, s.healthHandler)
	if s.config.FeedPath != "" && s.deps.Feed != nil {
		mux.Handle(s.config.FeedPath, s.deps.Metrics.InstrumentFeed(s.deps.Feed))
	}
	if s.config.MetricsPath != "" && s.deps.Metrics != nil {
		mux.Handle(s.config.MetricsPath, s.deps.Metrics.Handler())
	}
	return mux
}

// Handler returns the HTTP handler with every endpoint mounted
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Listen binds the listening socket. Start calls it when needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	logging.Info("Starting wsecho server",
		zap.String("addr", s.listener.Addr().String()),
		zap.String("engine", s.config.Engine),
		zap.String("ws_path", s.config.WSPath),
		zap.String("feed_path", s.config.FeedPath),
		zap.String("metrics_path", s.config.MetricsPath),
		zap.Int("max_message_bytes", s.config.MaxMessageBytes),
	)

	errChan := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errChan <- err
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	}
}

// upgradeHandler is the single entry point for WebSocket connections. It
// completes the handshake with the configured engine and hands the connection
// to the echo handler on its own goroutine.
func (s *Server) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	LogHTTPRequestDetails(r, remoteAddr)

	if s.baseCtx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	var conn wsConn
	switch s.config.Engine {
	case EngineRaw:
		c, err := s.acceptRaw(w, r)
		if err != nil {
			logging.Warn("Rejected WebSocket upgrade",
				zap.String("remote_addr", remoteAddr),
				zap.String("engine", EngineRaw),
				zap.Error(err),
			)
			return
		}
		conn = c
	default:
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already written the HTTP error
			logging.Warn("Rejected WebSocket upgrade",
				zap.String("remote_addr", remoteAddr),
				zap.String("engine", EngineGorilla),
				zap.Error(err),
			)
			return
		}
		conn = newGorillaConn(ws, s.config.IdleTimeout, s.config.WriteTimeout)
	}

	sess := echo.NewSession(conn.RemoteAddr(), s.config.Engine)
	if !s.track(sess.ID, conn.netConn()) {
		_ = conn.Close(context.Background(), echo.CloseGoingAway, "server shutting down")
		return
	}

	go s.serveConn(sess, conn)
}

// acceptRaw performs the handshake on a hijacked connection
func (s *Server) acceptRaw(w http.ResponseWriter, r *http.Request) (*rawConn, error) {
	if err := ValidateWebSocketUpgradeRequest(r); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, err
	}
	if !s.origins.Check(r) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return nil, fmt.Errorf("origin %q not allowed", r.Header.Get("Origin"))
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, errors.New("response writer does not support hijacking")
	}
	netConn, rw, err := hj.Hijack()
	if err != nil {
		return nil, fmt.Errorf("hijack failed: %w", err)
	}

	// Clear deadlines set by the HTTP server
	_ = netConn.SetDeadline(time.Time{})

	if err := WriteHTTP101Response(rw.Writer, r.RemoteAddr, r.Header.Get("Sec-WebSocket-Key")); err != nil {
		_ = netConn.Close()
		return nil, err
	}

	return newRawConn(netConn, rw, s.config.IdleTimeout, s.config.WriteTimeout, s.config.MaxMessageBytes), nil
}

// track registers an active connection. It fails once shutdown has begun.
func (s *Server) track(id string, conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.activeConns[id] = conn
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.activeConns, id)
	s.mu.Unlock()
	s.wg.Done()
}

// serveConn runs one connection to completion
func (s *Server) serveConn(sess *echo.Session, conn wsConn) {
	defer s.untrack(sess.ID)

	s.deps.Metrics.ConnectionOpened(sess.Engine)
	logging.Info("WebSocket connection opened",
		zap.String("session", sess.ID),
		zap.String("remote_addr", sess.RemoteAddr),
		zap.String("engine", sess.Engine),
	)

	err := s.handler.Serve(s.baseCtx, sess, conn)
	switch {
	case err == nil:
	case echo.IsExpectedDisconnect(err):
		logging.Info("Connection dropped by peer",
			zap.String("session", sess.ID),
			zap.String("remote_addr", sess.RemoteAddr),
		)
	default:
		logging.Error("WebSocket connection error",
			zap.String("session", sess.ID),
			zap.String("remote_addr", sess.RemoteAddr),
			zap.Error(err),
		)
	}
}

func (s *Server) onMessage(sess *echo.Session, msg *echo.Message) {
	result := metrics.ResultEchoed
	if msg.Type != echo.TextMessage {
		result = metrics.ResultRejected
	}
	s.deps.Metrics.MessageReceived(result, msg.Size)
	s.capture.Record(sess, msg)
}

func (s *Server) onClose(sess *echo.Session, code echo.CloseCode, reason string) {
	s.deps.Metrics.ConnectionClosed(int(code))
	logging.Debug("Session finished",
		zap.String("session", sess.ID),
		zap.Int64("messages", sess.Messages()),
		zap.Duration("duration", time.Since(sess.StartedAt)),
		zap.String("close", code.String()),
	)
}

// healthHandler reports liveness and the number of open connections
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status            string `json:"status"`
		ActiveConnections int    `json:"active_connections"`
	}{
		Status:            "ok",
		ActiveConnections: s.GetActiveConnections(),
	})
}

// Shutdown gracefully shuts down the server. Connection handlers are
// cancelled and close with 1001; sockets still open when ctx expires are
// force-closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	// Cancel every connection handler, then stop accepting new connections
	s.cancel()
	var httpErr error
	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		httpErr = fmt.Errorf("http shutdown: %w", err)
	}

	// Wait for all goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		s.forceClose()
	case <-time.After(s.config.ShutdownTimeout):
		logging.Warn("Shutdown timeout, forcing close",
			zap.Duration("timeout", s.config.ShutdownTimeout),
		)
		s.forceClose()
	}

	// Sync logger
	logging.Sync()

	return httpErr
}

// forceClose releases every socket still tracked
func (s *Server) forceClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("session", id))
		_ = conn.Close()
	}
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
