package feed

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/logging"
)

const (
	// DefaultURL is the feed proxied when none is configured
	DefaultURL = "http://scripting.com/rss.xml"

	// DefaultTimeout is the default upstream request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodyBytes bounds the upstream response body
	DefaultMaxBodyBytes = 4 << 20

	// DefaultMaxIdleConnsPerHost is the keep-alive pool size per upstream host
	DefaultMaxIdleConnsPerHost = 4

	// DefaultRetryDelay is the initial delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second

	// MaxRetryElapsed bounds the total time spent retrying one fetch
	MaxRetryElapsed = 30 * time.Second

	// DefaultUserAgent identifies the proxy to upstream servers
	DefaultUserAgent = "wsecho-feed/1.0"
)

// NewHTTPClient creates the pooled client shared by every feed request.
// It is built once at process start and passed to NewFetcher.
func NewHTTPClient(timeout time.Duration, maxIdleConnsPerHost int) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxIdleConnsPerHost <= 0 {
		maxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          4 * maxIdleConnsPerHost,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Fetcher retrieves feed documents over a shared HTTP client
type Fetcher struct {
	// HTTPClient is the underlying pooled client
	HTTPClient *http.Client

	// MaxBodyBytes is the largest accepted response body
	MaxBodyBytes int64

	// MaxRetries is the number of extra attempts for retryable failures (0 = none)
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts, doubled each time
	RetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff
	MaxRetryDelay time.Duration

	// UserAgent is sent with every upstream request
	UserAgent string
}

// NewFetcher creates a fetcher around client. A nil client gets a private
// pooled client with default settings.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = NewHTTPClient(DefaultTimeout, DefaultMaxIdleConnsPerHost)
	}
	return &Fetcher{
		HTTPClient:    client,
		MaxBodyBytes:  DefaultMaxBodyBytes,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
		UserAgent:     DefaultUserAgent,
	}
}

// Fetch performs a GET of rawURL and returns the body and its content type.
// Every failure is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	var (
		body        []byte
		contentType string
		lastErr     *FetchError
	)

	attempt := func() error {
		b, ct, err := f.fetchAttempt(ctx, rawURL)
		if err == nil {
			body, contentType = b, ct
			return nil
		}
		lastErr = err
		if !err.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		logging.Debug("Retrying feed fetch",
			zap.String("url", rawURL),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(attempt, f.retryPolicy(ctx), notify); err != nil {
		return nil, "", lastErr
	}
	return body, contentType, nil
}

// retryPolicy is an exponential backoff starting at RetryDelay, doubling up to
// MaxRetryDelay, bounded by MaxRetries and MaxRetryElapsed and stopped when ctx
// ends. MaxRetries <= 0 means a single attempt.
func (f *Fetcher) retryPolicy(ctx context.Context) backoff.BackOff {
	// WithMaxRetries treats 0 as unlimited
	if f.MaxRetries <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = MaxRetryElapsed
	if f.RetryDelay > 0 {
		b.InitialInterval = f.RetryDelay
	}
	if f.MaxRetryDelay > 0 {
		b.MaxInterval = f.MaxRetryDelay
	}
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.MaxRetries)), ctx)
}

func (f *Fetcher) fetchAttempt(ctx context.Context, rawURL string) ([]byte, string, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", &FetchError{Kind: KindNetwork, URL: rawURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.8")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, "", ClassifyNetworkError(err, rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can go back to the pool
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", &FetchError{
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Err:        fmt.Errorf("unexpected status: %s", resp.Status),
		}
	}

	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		fe := ClassifyNetworkError(err, rawURL)
		if fe.Kind != KindTimeout {
			fe.Kind = KindBody
		}
		return nil, "", fe
	}
	if int64(len(body)) > limit {
		return nil, "", &FetchError{
			Kind: KindTooLarge,
			URL:  rawURL,
			Err:  fmt.Errorf("response body exceeds %d bytes", limit),
		}
	}

	return body, resp.Header.Get("Content-Type"), nil
}
