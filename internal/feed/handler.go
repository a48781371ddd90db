package feed

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/logging"
)

// ContentType is the media type of every successful proxy response
const ContentType = "application/rss+xml"

// Handler proxies one fixed, operator-configured feed URL
type Handler struct {
	fetcher *Fetcher
	url     string
}

// NewHandler creates a handler serving url through fetcher
func NewHandler(fetcher *Fetcher, url string) *Handler {
	return &Handler{fetcher: fetcher, url: url}
}

// URL returns the upstream feed URL
func (h *Handler) URL() string {
	return h.url
}

// ServeHTTP answers GET and HEAD with the upstream feed. Upstream failures
// become 502 (504 for timeouts) with a generic body.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	body, _, err := h.fetcher.Fetch(r.Context(), h.url)
	if err != nil {
		status := http.StatusBadGateway
		var fe *FetchError
		if errors.As(err, &fe) && fe.Timeout() {
			status = http.StatusGatewayTimeout
		}

		logging.Warn("Feed upstream request failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("url", h.url),
			zap.Int("status_code", status),
			zap.Error(err),
		)
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		logging.Debug("Failed to write feed response",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
	}
}
