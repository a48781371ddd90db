package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// FetchErrorKind represents the category of an upstream failure
type FetchErrorKind int

const (
	// KindNetwork indicates a network-level error not covered by a more specific kind
	KindNetwork FetchErrorKind = iota
	// KindTimeout indicates the request or body read exceeded its deadline
	KindTimeout
	// KindDNS indicates the upstream hostname could not be resolved
	KindDNS
	// KindConnectionRefused indicates the upstream refused the connection
	KindConnectionRefused
	// KindHTTPStatus indicates a non-2xx response
	KindHTTPStatus
	// KindBody indicates the response body could not be read
	KindBody
	// KindTooLarge indicates the response body exceeded the configured limit
	KindTooLarge
)

// String returns a human-readable name for the kind
func (k FetchErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "Network Error"
	case KindTimeout:
		return "Timeout"
	case KindDNS:
		return "DNS Error"
	case KindConnectionRefused:
		return "Connection Refused"
	case KindHTTPStatus:
		return "HTTP Error"
	case KindBody:
		return "Body Read Error"
	case KindTooLarge:
		return "Response Too Large"
	default:
		return fmt.Sprintf("FetchErrorKind(%d)", int(k))
	}
}

// FetchError is returned for every upstream failure
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int    // Upstream HTTP status (KindHTTPStatus only)
	URL        string // Upstream URL
	Err        error  // Underlying error (if any)
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("%s: %s returned %d", e.Kind, e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: fetching %s (caused by: %v)", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: fetching %s", e.Kind, e.URL)
}

// Unwrap returns the underlying error for error chain inspection
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiry
func (e *FetchError) Timeout() bool {
	return e.Kind == KindTimeout
}

// Retryable reports whether repeating the request could succeed
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindConnectionRefused, KindBody:
		return true
	case KindHTTPStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// ClassifyNetworkError analyzes a transport error and returns a FetchError of
// the most specific kind
func ClassifyNetworkError(err error, rawURL string) *FetchError {
	if err == nil {
		return nil
	}

	// Check for URL errors first so the classification sees the cause
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		if urlErr.Timeout() {
			return &FetchError{Kind: KindTimeout, URL: rawURL, Err: err}
		}
		return ClassifyNetworkError(urlErr.Err, rawURL)
	}

	// Check for timeout errors
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &FetchError{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: KindTimeout, URL: rawURL, Err: err}
	}

	// Check for DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &FetchError{Kind: KindDNS, URL: rawURL, Err: err}
	}

	// Check for connection refused
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &FetchError{Kind: KindConnectionRefused, URL: rawURL, Err: err}
	}

	// Generic network error
	return &FetchError{Kind: KindNetwork, URL: rawURL, Err: err}
}

// IsFetchError reports whether err is or wraps a *FetchError
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// ShortMessage returns a concise, user-friendly description of err
func ShortMessage(err error) string {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return err.Error()
	}

	switch fe.Kind {
	case KindTimeout:
		return "Feed server not responding (timeout)"
	case KindConnectionRefused:
		return "Feed server refused connection"
	case KindDNS:
		return "Cannot resolve feed hostname"
	case KindHTTPStatus:
		return fmt.Sprintf("Feed server error (HTTP %d)", fe.StatusCode)
	case KindTooLarge:
		return "Feed response too large"
	case KindBody:
		return "Failed to read feed response"
	default:
		return "Network error - check connection"
	}
}
