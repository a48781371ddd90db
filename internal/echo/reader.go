package echo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the receive buffer size used per ReceiveFrame call
	DefaultChunkSize = 4096

	// DefaultMaxMessageBytes bounds an assembled message when no limit is configured
	DefaultMaxMessageBytes = 64 * 1024
)

// FrameSource yields frames from one connection. ReceiveFrame writes at most
// len(p) payload bytes into p and blocks until a frame chunk is available or
// ctx is done. Transports answer ping/pong internally.
type FrameSource interface {
	ReceiveFrame(ctx context.Context, p []byte) (Frame, error)
}

// ReceiveMessage reads frames from src until one is marked end-of-message and
// returns the assembled message.
//
// buf is the chunk buffer (DefaultChunkSize is allocated when empty). The
// accumulated payload may not exceed maxMessageBytes; a non-positive value
// means DefaultMaxMessageBytes. No partial message is ever returned: on any
// failure the message is nil and the error is one of *MessageTooLargeError,
// *UnexpectedFrameTypeError, *DecodeError or *TransportError.
func ReceiveMessage(ctx context.Context, src FrameSource, buf []byte, maxMessageBytes int) (*Message, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultChunkSize)
	}
	if maxMessageBytes <= 0 {
		maxMessageBytes = DefaultMaxMessageBytes
	}

	var (
		payload bytes.Buffer
		msgType MessageType
		frames  int
	)

	for {
		f, err := src.ReceiveFrame(ctx, buf)
		if err != nil {
			// Transports may detect protocol violations on the wire themselves
			if errors.Is(err, ErrUnexpectedFrameType) || errors.Is(err, ErrMessageTooLarge) {
				return nil, err
			}
			return nil, &TransportError{Op: "receive", Err: err}
		}

		if f.Type != TextMessage && f.Type != BinaryMessage {
			return nil, &UnexpectedFrameTypeError{
				Want:        msgType,
				Got:         f.Type,
				Index:       frames,
				CloseCode:   f.CloseCode,
				CloseReason: f.CloseReason,
			}
		}
		if msgType == 0 {
			msgType = f.Type
		} else if f.Type != msgType {
			return nil, &UnexpectedFrameTypeError{Want: msgType, Got: f.Type, Index: frames}
		}
		frames++

		if f.N < 0 || f.N > len(buf) {
			return nil, &TransportError{Op: "receive", Err: fmt.Errorf("frame reported %d bytes for a %d byte buffer: %w", f.N, len(buf), io.ErrShortBuffer)}
		}
		if payload.Len()+f.N > maxMessageBytes {
			return nil, &MessageTooLargeError{Limit: maxMessageBytes, Size: payload.Len() + f.N}
		}
		payload.Write(buf[:f.N])

		if f.EndOfMessage {
			break
		}
	}

	data := payload.Bytes()
	msg := &Message{
		Type:    msgType,
		Payload: data,
		Size:    len(data),
		Frames:  frames,
	}

	if msgType == TextMessage {
		if !utf8.Valid(data) {
			return nil, &DecodeError{Offset: invalidUTF8Offset(data)}
		}
		msg.Text = string(data)
	}

	return msg, nil
}

// invalidUTF8Offset returns the index of the first byte that does not start a valid rune
func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(b)
}
