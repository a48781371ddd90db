package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/logging"
)

const (
	// DefaultHandshakeTimeout bounds the opening handshake
	DefaultHandshakeTimeout = 5 * time.Second

	// DefaultReadTimeout bounds the wait for a single reply
	DefaultReadTimeout = 10 * time.Second

	// closeWait is how long Close waits for the server's close frame
	closeWait = 2 * time.Second
)

// ErrClosed is returned after Close
var ErrClosed = errors.New("client: connection closed")

// CloseError reports the close frame the server sent
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("server closed the connection (%d)", e.Code)
	}
	return fmt.Sprintf("server closed the connection (%d %s)", e.Code, e.Reason)
}

// Options tune a connection. The zero value uses the defaults.
type Options struct {
	// Fragment splits outgoing messages into frames of at most this many
	// payload bytes; zero sends each message as one frame up to 4096 bytes.
	Fragment int

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration

	// Header is sent with the upgrade request (e.g., Origin)
	Header http.Header
}

// Client is one WebSocket connection to an echo endpoint.
// Send and Receive may be used from different goroutines, but not
// concurrently with themselves.
type Client struct {
	conn        *websocket.Conn
	url         string
	readTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens a connection to url (ws:// or wss://)
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	if opts.Fragment < 0 {
		return nil, fmt.Errorf("fragment size must not be negative: %d", opts.Fragment)
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
		WriteBufferSize:  opts.Fragment,
	}

	conn, resp, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake with %s failed: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	logging.Debug("Connected",
		zap.String("url", url),
		zap.String("local_addr", conn.LocalAddr().String()),
		zap.Int("fragment", opts.Fragment),
	)

	return &Client{
		conn:        conn,
		url:         url,
		readTimeout: opts.ReadTimeout,
		closed:      make(chan struct{}),
	}, nil
}

// URL returns the address the client is connected to
func (c *Client) URL() string {
	return c.url
}

// Send writes a text message
func (c *Client) Send(ctx context.Context, text string) error {
	return c.write(ctx, websocket.TextMessage, []byte(text))
}

// SendBinary writes a binary message; the echo server answers with a 1002 close
func (c *Client) SendBinary(ctx context.Context, data []byte) error {
	return c.write(ctx, websocket.BinaryMessage, data)
}

func (c *Client) write(ctx context.Context, messageType int, data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to send message: %w", err)
	}
	logging.LogWebSocketMessage(c.url, "sent", messageType, data)
	return nil
}

// Receive waits for the next text message. A close frame from the server
// is returned as *CloseError.
func (c *Client) Receive(ctx context.Context) (string, error) {
	select {
	case <-c.closed:
		return "", ErrClosed
	default:
	}

	deadline := time.Now().Add(c.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return "", &CloseError{Code: ce.Code, Reason: ce.Text}
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to receive message: %w", err)
	}
	logging.LogWebSocketMessage(c.url, "received", mt, data)

	if mt != websocket.TextMessage {
		return "", fmt.Errorf("unexpected %s reply", messageTypeName(mt))
	}
	return string(data), nil
}

// Echo sends text and waits for the reply
func (c *Client) Echo(ctx context.Context, text string) (string, error) {
	if err := c.Send(ctx, text); err != nil {
		return "", err
	}
	return c.Receive(ctx)
}

// Close performs the closing handshake with 1000 and releases the connection
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait)); werr == nil {
			// Drain until the server's close frame arrives
			_ = c.conn.SetReadDeadline(time.Now().Add(closeWait))
			for {
				if _, _, rerr := c.conn.NextReader(); rerr != nil {
					break
				}
			}
		}
		err = c.conn.Close()
	})
	return err
}

func messageTypeName(mt int) string {
	switch mt {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return fmt.Sprintf("type %d", mt)
	}
}
