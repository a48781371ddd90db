package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/echo"
	"github.com/muurk/wsecho/internal/frame"
	"github.com/muurk/wsecho/internal/logging"
)

// rawConn implements echo.Conn directly on a hijacked connection using the
// frame codec. Payloads are streamed in chunks and unmasked in place, so a
// large declared length is never allocated up front.
type rawConn struct {
	conn         net.Conn
	br           *bufio.Reader
	bw           *bufio.Writer
	remoteAddr   string
	idleTimeout  time.Duration
	writeTimeout time.Duration
	maxMessage   int

	// Current data frame
	hdr       frame.Header
	inFrame   bool
	remaining uint64
	maskPos   int

	// Current message
	msgType  echo.MessageType
	msgBytes uint64

	peerClosed bool
	closeOnce  sync.Once
	closeErr   error
}

func newRawConn(conn net.Conn, rw *bufio.ReadWriter, idleTimeout, writeTimeout time.Duration, maxMessage int) *rawConn {
	return &rawConn{
		conn:         conn,
		br:           rw.Reader,
		bw:           rw.Writer,
		remoteAddr:   conn.RemoteAddr().String(),
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
		maxMessage:   maxMessage,
	}
}

func (c *rawConn) RemoteAddr() string {
	return c.remoteAddr
}

func (c *rawConn) netConn() net.Conn {
	return c.conn
}

// protocolViolation wraps a wire-level error so the frame reader passes it
// through and the handler answers with a protocol error close
func protocolViolation(err error) error {
	return fmt.Errorf("%w: %w", echo.ErrUnexpectedFrameType, err)
}

func (c *rawConn) ReceiveFrame(ctx context.Context, p []byte) (echo.Frame, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
		return echo.Frame{}, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for !c.inFrame {
		f, done, err := c.readHeader(ctx)
		if err != nil {
			return echo.Frame{}, err
		}
		if done {
			return f, nil
		}
	}

	if c.remaining == 0 {
		return c.finishFrame(0), nil
	}

	want := uint64(len(p))
	if c.remaining < want {
		want = c.remaining
	}
	n, err := io.ReadFull(c.br, p[:want])
	if err != nil {
		return echo.Frame{}, c.readFailure(ctx, err)
	}
	c.maskPos = frame.Mask(c.hdr.MaskKey, c.maskPos, p[:n])
	c.remaining -= uint64(n)

	if c.remaining == 0 {
		return c.finishFrame(n), nil
	}
	return echo.Frame{N: n, Type: c.msgType}, nil
}

// readHeader reads one frame header. Control frames are handled here; done
// is true when the returned frame must be passed to the caller.
func (c *rawConn) readHeader(ctx context.Context) (echo.Frame, bool, error) {
	hdr, err := frame.ReadHeader(c.br)
	if err != nil {
		if errors.Is(err, frame.ErrLengthOverflow) {
			return echo.Frame{}, false, protocolViolation(err)
		}
		return echo.Frame{}, false, c.readFailure(ctx, err)
	}
	if err := hdr.Validate(); err != nil {
		c.skipFrame(hdr)
		return echo.Frame{}, false, protocolViolation(err)
	}
	if !hdr.Masked {
		c.skipFrame(hdr)
		return echo.Frame{}, false, protocolViolation(errors.New("client frame is not masked"))
	}

	logging.Debug("WebSocket frame received",
		zap.String("remote_addr", c.remoteAddr),
		zap.String("frame", hdr.String()),
	)

	if hdr.IsControl() {
		return c.handleControl(ctx, hdr)
	}

	c.hdr = hdr
	c.inFrame = true
	c.remaining = hdr.Length
	c.maskPos = 0

	switch hdr.Opcode {
	case frame.OpcodeContinuation:
		if c.msgType == 0 {
			return echo.Frame{}, false, protocolViolation(errors.New("continuation frame without a message in progress"))
		}
	case frame.OpcodeText, frame.OpcodeBinary:
		if c.msgType != 0 {
			return echo.Frame{}, false, &echo.UnexpectedFrameTypeError{
				Want: c.msgType,
				Got:  opcodeMessageType(hdr.Opcode),
			}
		}
		c.msgType = opcodeMessageType(hdr.Opcode)
		c.msgBytes = 0
	}

	// Reject on the declared length before reading the payload. The frame
	// stays current so the close handshake can skip its payload.
	c.msgBytes += hdr.Length
	if c.maxMessage > 0 && c.msgBytes > uint64(c.maxMessage) {
		size := int(min(c.msgBytes, uint64(1<<31-1)))
		return echo.Frame{}, false, &echo.MessageTooLargeError{Limit: c.maxMessage, Size: size}
	}
	return echo.Frame{}, false, nil
}

// skipFrame makes a rejected frame current so the close handshake discards
// its payload instead of parsing it as headers
func (c *rawConn) skipFrame(hdr frame.Header) {
	c.hdr = hdr
	c.inFrame = true
	c.remaining = hdr.Length
}

func (c *rawConn) handleControl(ctx context.Context, hdr frame.Header) (echo.Frame, bool, error) {
	payload := make([]byte, hdr.Length)
	if _, err := io.ReadFull(c.br, payload); err != nil {
		return echo.Frame{}, false, c.readFailure(ctx, err)
	}
	frame.Mask(hdr.MaskKey, 0, payload)

	switch hdr.Opcode {
	case frame.OpcodePing:
		if err := c.writeFrame(ctx, frame.OpcodePong, payload); err != nil {
			return echo.Frame{}, false, err
		}
		return echo.Frame{}, false, nil

	case frame.OpcodePong:
		return echo.Frame{}, false, nil

	default: // close
		code, reason, err := frame.ParseClosePayload(payload)
		if err != nil {
			return echo.Frame{}, false, protocolViolation(err)
		}
		c.peerClosed = true
		if code == 0 {
			code = uint16(echo.CloseNoStatusReceived)
		}
		return echo.Frame{
			Type:         echo.CloseMessage,
			EndOfMessage: true,
			CloseCode:    echo.CloseCode(code),
			CloseReason:  reason,
		}, true, nil
	}
}

// finishFrame completes the current data frame after its last n bytes
func (c *rawConn) finishFrame(n int) echo.Frame {
	f := echo.Frame{N: n, Type: c.msgType, EndOfMessage: c.hdr.FIN}
	c.inFrame = false
	if c.hdr.FIN {
		c.msgType = 0
	}
	return f
}

func (c *rawConn) readFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *rawConn) SendText(ctx context.Context, payload []byte) error {
	return c.writeFrame(ctx, frame.OpcodeText, payload)
}

func (c *rawConn) writeFrame(ctx context.Context, opcode byte, payload []byte) error {
	if err := c.conn.SetWriteDeadline(writeDeadline(ctx, c.writeTimeout)); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := frame.WriteFrame(c.bw, true, opcode, payload); err != nil {
		return err
	}
	return c.bw.Flush()
}

// Close sends the close frame, waits for the peer's close frame unless it
// already arrived, then releases the socket
func (c *rawConn) Close(ctx context.Context, code echo.CloseCode, reason string) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.closeHandshake(ctx, code, reason)
		if err := c.conn.Close(); err != nil && c.closeErr == nil && !errors.Is(err, net.ErrClosed) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

func (c *rawConn) closeHandshake(ctx context.Context, code echo.CloseCode, reason string) error {
	if code == echo.CloseAbnormalClosure {
		return nil
	}

	if err := c.writeFrame(ctx, frame.OpcodeClose, frame.ClosePayload(uint16(code), reason)); err != nil {
		return err
	}
	if c.peerClosed {
		return nil
	}

	if err := c.conn.SetReadDeadline(writeDeadline(ctx, c.writeTimeout)); err != nil {
		return err
	}

	// Discard the rest of the current frame, then everything up to the close
	if c.inFrame && c.remaining > 0 {
		if _, err := io.CopyN(io.Discard, c.br, int64(c.remaining)); err != nil {
			return err
		}
	}
	for {
		hdr, err := frame.ReadHeader(c.br)
		if err != nil {
			return err
		}
		if hdr.Opcode == frame.OpcodeClose {
			return nil
		}
		if _, err := io.CopyN(io.Discard, c.br, int64(hdr.Length)); err != nil {
			return err
		}
	}
}

func opcodeMessageType(opcode byte) echo.MessageType {
	switch opcode {
	case frame.OpcodeText:
		return echo.TextMessage
	case frame.OpcodeBinary:
		return echo.BinaryMessage
	case frame.OpcodeClose:
		return echo.CloseMessage
	default:
		return echo.ControlMessage
	}
}
