package echo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

var (
	// ErrMessageTooLarge is returned when a message grows past the configured bound
	ErrMessageTooLarge = errors.New("message too large")

	// ErrUnexpectedFrameType is returned for close/control frames where data was
	// expected, or for a frame whose type differs from the message being assembled
	ErrUnexpectedFrameType = errors.New("unexpected frame type")

	// ErrDecode is returned when a text message is not valid UTF-8
	ErrDecode = errors.New("invalid UTF-8 in text message")

	// ErrTransport marks failures of the underlying socket
	ErrTransport = errors.New("transport failure")
)

// MessageTooLargeError reports the bound that was exceeded
type MessageTooLargeError struct {
	Limit int // Configured maximum in bytes
	Size  int // Accumulated size when the bound was crossed
}

func (e *MessageTooLargeError) Error() string {
	return fmt.Sprintf("message too large: %d bytes exceeds limit of %d", e.Size, e.Limit)
}

func (e *MessageTooLargeError) Unwrap() error {
	return ErrMessageTooLarge
}

// UnexpectedFrameTypeError describes a frame that broke message assembly
type UnexpectedFrameTypeError struct {
	Want  MessageType // Type of the message being assembled (0 before the first frame)
	Got   MessageType
	Index int // Position of the offending frame within the message

	// Copied from the frame when Got is CloseMessage
	CloseCode   CloseCode
	CloseReason string
}

func (e *UnexpectedFrameTypeError) Error() string {
	if e.Want == 0 {
		return fmt.Sprintf("unexpected frame type: got %s, want text or binary", e.Got)
	}
	return fmt.Sprintf("unexpected frame type: got %s at frame %d of %s message", e.Got, e.Index, e.Want)
}

func (e *UnexpectedFrameTypeError) Unwrap() error {
	return ErrUnexpectedFrameType
}

// PeerClosed reports whether the error is a close frame received between
// messages, which is an orderly close rather than a protocol violation
func (e *UnexpectedFrameTypeError) PeerClosed() bool {
	return e.Index == 0 && e.Got == CloseMessage
}

// DecodeError reports where UTF-8 decoding failed
type DecodeError struct {
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid UTF-8 in text message at byte %d", e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// TransportError wraps a socket-level failure
type TransportError struct {
	Op  string // "receive", "send" or "close"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrTransport and the cause to errors.Is/As
func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// Timeout reports whether the transport failure was a deadline expiry
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// AsPeerClose extracts the close code and reason from an orderly peer close
func AsPeerClose(err error) (CloseCode, string, bool) {
	var ufe *UnexpectedFrameTypeError
	if errors.As(err, &ufe) && ufe.PeerClosed() {
		return ufe.CloseCode, ufe.CloseReason, true
	}
	return 0, "", false
}

// CloseCodeFor maps a receive failure to the close status sent to the peer.
// CloseAbnormalClosure means no close frame can be sent and the socket is
// released without a handshake.
func CloseCodeFor(err error) (CloseCode, string) {
	if code, reason, ok := AsPeerClose(err); ok {
		if code == 0 || code == CloseNoStatusReceived {
			return CloseNormalClosure, ""
		}
		return code, reason
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CloseGoingAway, "server shutting down"
	case errors.Is(err, ErrMessageTooLarge):
		return CloseMessageTooBig, "message too large"
	case errors.Is(err, ErrUnexpectedFrameType):
		return CloseProtocolError, "unexpected frame type"
	case errors.Is(err, ErrDecode):
		return CloseInvalidPayload, "invalid UTF-8"
	}

	var te *TransportError
	if errors.As(err, &te) && te.Timeout() {
		return CloseGoingAway, "idle timeout"
	}
	return CloseAbnormalClosure, ""
}

// IsExpectedDisconnect reports whether err is the peer simply going away
// (EOF or a reset) rather than something worth an error log
func IsExpectedDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}
