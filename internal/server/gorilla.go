package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/wsecho/internal/echo"
	"github.com/muurk/wsecho/internal/frame"
)

// gorillaConn adapts a gorilla/websocket connection to echo.Conn.
//
// gorilla assembles continuation frames itself, so chunks are read from the
// current message reader and end-of-message is reported when it hits io.EOF.
// Ping/pong and the reply to a peer close are handled by gorilla's default
// handlers.
type gorillaConn struct {
	ws           *websocket.Conn
	idleTimeout  time.Duration
	writeTimeout time.Duration

	reader     io.Reader
	msgType    echo.MessageType
	peerClosed bool
	readFailed bool
	closeOnce  sync.Once
	closeErr   error
}

func newGorillaConn(ws *websocket.Conn, idleTimeout, writeTimeout time.Duration) *gorillaConn {
	return &gorillaConn{
		ws:           ws,
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
	}
}

func (c *gorillaConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *gorillaConn) netConn() net.Conn {
	return c.ws.NetConn()
}

func (c *gorillaConn) ReceiveFrame(ctx context.Context, p []byte) (echo.Frame, error) {
	if err := c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
		return echo.Frame{}, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	if c.reader == nil {
		mt, r, err := c.ws.NextReader()
		if err != nil {
			return c.readFailure(ctx, err)
		}
		c.reader = r
		c.msgType = convertMessageType(mt)
	}

	n, err := c.reader.Read(p)
	switch {
	case err == io.EOF:
		typ := c.msgType
		c.reader, c.msgType = nil, 0
		return echo.Frame{N: n, Type: typ, EndOfMessage: true}, nil
	case err != nil:
		return c.readFailure(ctx, err)
	}
	return echo.Frame{N: n, Type: c.msgType}, nil
}

// readFailure turns a gorilla read error into a close frame, a cancellation or a transport error
func (c *gorillaConn) readFailure(ctx context.Context, err error) (echo.Frame, error) {
	c.readFailed = true
	if ctx.Err() != nil {
		return echo.Frame{}, ctx.Err()
	}

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.readFailed = false
		c.peerClosed = true
		c.reader = nil
		return echo.Frame{
			Type:         echo.CloseMessage,
			EndOfMessage: true,
			CloseCode:    echo.CloseCode(ce.Code),
			CloseReason:  ce.Text,
		}, nil
	}
	return echo.Frame{}, err
}

func (c *gorillaConn) SendText(ctx context.Context, payload []byte) error {
	if err := c.ws.SetWriteDeadline(writeDeadline(ctx, c.writeTimeout)); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetWriteDeadline(time.Now())
	})
	defer stop()

	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close sends the close frame and waits for the peer's reply until ctx is
// done, then releases the socket
func (c *gorillaConn) Close(ctx context.Context, code echo.CloseCode, reason string) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.closeHandshake(ctx, code, reason)
		if err := c.ws.Close(); err != nil && c.closeErr == nil && !errors.Is(err, net.ErrClosed) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

func (c *gorillaConn) closeHandshake(ctx context.Context, code echo.CloseCode, reason string) error {
	// gorilla already answered the peer's close frame
	if code == echo.CloseAbnormalClosure || c.peerClosed {
		return nil
	}

	deadline := writeDeadline(ctx, c.writeTimeout)
	msg := websocket.FormatCloseMessage(int(code), reason)
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		return err
	}

	// gorilla read errors are permanent, so after a timeout or cancellation
	// wait on the socket itself
	if c.readFailed {
		return c.drainSocket(deadline)
	}

	// Drain until the peer's close frame arrives
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return err
	}
	for {
		if _, _, err := c.ws.NextReader(); err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return nil
			}
			return err
		}
	}
}

// drainSocket half-closes the connection and reads frames from the socket
// until the peer's close frame, EOF or the deadline
func (c *gorillaConn) drainSocket(deadline time.Time) error {
	conn := c.ws.NetConn()
	if hc, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = hc.CloseWrite()
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	br := bufio.NewReader(conn)
	for {
		hdr, err := frame.ReadHeader(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if hdr.Opcode == frame.OpcodeClose {
			return nil
		}
		if _, err := io.CopyN(io.Discard, br, int64(hdr.Length)); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func convertMessageType(mt int) echo.MessageType {
	switch mt {
	case websocket.TextMessage:
		return echo.TextMessage
	case websocket.BinaryMessage:
		return echo.BinaryMessage
	case websocket.CloseMessage:
		return echo.CloseMessage
	default:
		return echo.ControlMessage
	}
}

// writeDeadline returns now+timeout, or the context deadline if it is sooner
func writeDeadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}
