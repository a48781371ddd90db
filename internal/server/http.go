package server

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/logging"
)

// websocketGUID is appended to Sec-WebSocket-Key before hashing (RFC 6455 §1.3)
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes the Sec-WebSocket-Accept value for a client key
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// WriteHTTP101Response writes the Switching Protocols response that completes
// the handshake on a hijacked connection
func WriteHTTP101Response(w *bufio.Writer, remoteAddr, key string) error {
	accept := AcceptKey(key)
	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n" +
		"\r\n"

	logging.LogRawBytes("HTTP 101 Response", []byte(response))

	if _, err := w.WriteString(response); err != nil {
		return fmt.Errorf("failed to write HTTP 101 response: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush HTTP 101 response: %w", err)
	}

	logging.LogHTTPResponse(remoteAddr, http.StatusSwitchingProtocols, map[string]string{
		"Upgrade":              "websocket",
		"Connection":           "Upgrade",
		"Sec-WebSocket-Accept": accept,
	})
	return nil
}

// ValidateWebSocketUpgradeRequest checks if the incoming HTTP request is a valid WebSocket upgrade
func ValidateWebSocketUpgradeRequest(req *http.Request) error {
	// Check method
	if req.Method != http.MethodGet {
		return fmt.Errorf("invalid method: %s (expected GET)", req.Method)
	}

	// Check Upgrade header
	if !headerContainsToken(req.Header, "Upgrade", "websocket") {
		return fmt.Errorf("invalid Upgrade header: %q (expected websocket)", req.Header.Get("Upgrade"))
	}

	// Check Connection header
	if !headerContainsToken(req.Header, "Connection", "upgrade") {
		return fmt.Errorf("invalid Connection header: %q (expected upgrade)", req.Header.Get("Connection"))
	}

	// Check Sec-WebSocket-Version
	version := req.Header.Get("Sec-WebSocket-Version")
	if version != "13" {
		return fmt.Errorf("invalid Sec-WebSocket-Version: %q (expected 13)", version)
	}

	// Sec-WebSocket-Key must be 16 bytes, base64 encoded
	key := req.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return fmt.Errorf("missing Sec-WebSocket-Key header")
	}
	if decoded, err := base64.StdEncoding.DecodeString(key); err != nil || len(decoded) != 16 {
		return fmt.Errorf("invalid Sec-WebSocket-Key: %q", key)
	}

	return nil
}

// headerContainsToken reports whether a comma-separated header lists token
func headerContainsToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

// OriginChecker decides whether a browser origin may open a connection.
// Requests without an Origin header (non-browser clients) are always allowed.
type OriginChecker struct {
	allowed []string
}

// NewOriginChecker creates a checker. With no allowed hosts only same-origin
// requests pass; "*" allows every origin.
func NewOriginChecker(allowed []string) *OriginChecker {
	return &OriginChecker{allowed: allowed}
}

// Check implements the same-origin policy with an allow list
func (c *OriginChecker) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range c.allowed {
		if allowed == "*" || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// LogHTTPRequestDetails logs all details of an HTTP request
func LogHTTPRequestDetails(req *http.Request, remoteAddr string) {
	headers := make(map[string]string)
	for key, values := range req.Header {
		headers[key] = strings.Join(values, ", ")
	}

	logging.LogHTTPRequest(remoteAddr, req.Method, req.URL.Path, headers)

	// Log specific WebSocket headers at debug level
	logging.Debug("WebSocket upgrade request details",
		zap.String("remote_addr", remoteAddr),
		zap.String("host", req.Host),
		zap.String("origin", req.Header.Get("Origin")),
		zap.String("sec_websocket_key", req.Header.Get("Sec-WebSocket-Key")),
		zap.String("sec_websocket_version", req.Header.Get("Sec-WebSocket-Version")),
		zap.String("user_agent", req.Header.Get("User-Agent")),
	)
}
