package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// WebSocket frame opcodes
const (
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA
)

const (
	// MaxControlPayload is the largest payload a control frame may carry
	MaxControlPayload = 125

	// MaxHeaderSize is the largest possible frame header (2 + 8 ext length + 4 mask)
	MaxHeaderSize = 14
)

var (
	ErrReservedBits      = errors.New("reserved bits set without a negotiated extension")
	ErrReservedOpcode    = errors.New("reserved opcode")
	ErrControlFragmented = errors.New("control frame must not be fragmented")
	ErrControlTooLong    = errors.New("control frame payload exceeds 125 bytes")
	ErrLengthOverflow    = errors.New("payload length has most significant bit set")
	ErrInvalidClose      = errors.New("invalid close frame payload")
)

// Header represents a parsed WebSocket frame header. The payload itself is
// left on the wire so callers can stream it in bounded chunks.
type Header struct {
	FIN     bool
	RSV1    bool
	RSV2    bool
	RSV3    bool
	Opcode  byte
	Masked  bool
	Length  uint64
	MaskKey [4]byte
}

// ReadHeader reads one frame header from r
func ReadHeader(r io.Reader) (Header, error) {
	var h Header

	// Read first two bytes
	var b [8]byte
	if _, err := io.ReadFull(r, b[:2]); err != nil {
		return h, fmt.Errorf("failed to read frame header: %w", err)
	}

	// First byte: FIN, RSV1-3, Opcode
	h.FIN = (b[0] & 0x80) != 0
	h.RSV1 = (b[0] & 0x40) != 0
	h.RSV2 = (b[0] & 0x20) != 0
	h.RSV3 = (b[0] & 0x10) != 0
	h.Opcode = b[0] & 0x0F

	// Second byte: Mask, Payload length
	h.Masked = (b[1] & 0x80) != 0
	payloadLen := uint64(b[1] & 0x7F)

	// Extended payload length
	switch payloadLen {
	case 126:
		if _, err := io.ReadFull(r, b[:2]); err != nil {
			return h, fmt.Errorf("failed to read extended length: %w", err)
		}
		h.Length = uint64(binary.BigEndian.Uint16(b[:2]))
	case 127:
		if _, err := io.ReadFull(r, b[:8]); err != nil {
			return h, fmt.Errorf("failed to read extended length: %w", err)
		}
		h.Length = binary.BigEndian.Uint64(b[:8])
		if h.Length>>63 != 0 {
			return h, ErrLengthOverflow
		}
	default:
		h.Length = payloadLen
	}

	// Mask key (client-to-server frames must be masked)
	if h.Masked {
		if _, err := io.ReadFull(r, h.MaskKey[:]); err != nil {
			return h, fmt.Errorf("failed to read mask key: %w", err)
		}
	}

	return h, nil
}

// Validate checks the header against the base protocol rules (no extensions)
func (h Header) Validate() error {
	if h.RSV1 || h.RSV2 || h.RSV3 {
		return ErrReservedBits
	}
	switch h.Opcode {
	case OpcodeContinuation, OpcodeText, OpcodeBinary:
		return nil
	case OpcodeClose, OpcodePing, OpcodePong:
		if !h.FIN {
			return ErrControlFragmented
		}
		if h.Length > MaxControlPayload {
			return ErrControlTooLong
		}
		return nil
	default:
		return fmt.Errorf("%w: 0x%X", ErrReservedOpcode, h.Opcode)
	}
}

// IsControl reports whether the frame is a close, ping or pong frame
func (h Header) IsControl() bool {
	return h.Opcode&0x8 != 0
}

// Mask XORs b in place with the key, starting at position pos of the payload.
// It returns the position following b so masking can continue across chunks.
func Mask(key [4]byte, pos int, b []byte) int {
	for i := range b {
		b[i] ^= key[(pos+i)&3]
	}
	return (pos + len(b)) & 3
}

// AppendHeader appends an encoded frame header to dst
func AppendHeader(dst []byte, fin bool, opcode byte, length int, masked bool, key [4]byte) []byte {
	b0 := opcode & 0x0F
	if fin {
		b0 |= 0x80
	}
	dst = append(dst, b0)

	var maskBit byte
	if masked {
		maskBit = 0x80
	}

	switch {
	case length < 126:
		dst = append(dst, maskBit|byte(length))
	case length < 65536:
		dst = append(dst, maskBit|126, byte(length>>8), byte(length))
	default:
		dst = append(dst, maskBit|127)
		for i := 7; i >= 0; i-- {
			dst = append(dst, byte(uint64(length)>>(i*8)))
		}
	}

	if masked {
		dst = append(dst, key[:]...)
	}
	return dst
}

// WriteFrame writes a single unmasked (server-to-client) frame
func WriteFrame(w io.Writer, fin bool, opcode byte, payload []byte) error {
	buf := AppendHeader(make([]byte, 0, MaxHeaderSize+len(payload)), fin, opcode, len(payload), false, [4]byte{})
	buf = append(buf, payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// WriteMaskedFrame writes a single masked (client-to-server) frame.
// The payload slice is not modified.
func WriteMaskedFrame(w io.Writer, fin bool, opcode byte, payload []byte, key [4]byte) error {
	buf := AppendHeader(make([]byte, 0, MaxHeaderSize+len(payload)), fin, opcode, len(payload), true, key)
	start := len(buf)
	buf = append(buf, payload...)
	Mask(key, 0, buf[start:])
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ClosePayload builds the body of a close frame. Code 0 produces an empty body.
func ClosePayload(code uint16, reason string) []byte {
	if code == 0 {
		return nil
	}
	if len(reason) > MaxControlPayload-2 {
		reason = reason[:MaxControlPayload-2]
		for len(reason) > 0 && !utf8.ValidString(reason) {
			reason = reason[:len(reason)-1]
		}
	}
	p := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(p, code)
	return append(p, reason...)
}

// ParseClosePayload decodes a close frame body. An empty body yields code 0.
func ParseClosePayload(p []byte) (uint16, string, error) {
	switch {
	case len(p) == 0:
		return 0, "", nil
	case len(p) == 1:
		return 0, "", ErrInvalidClose
	}
	code := binary.BigEndian.Uint16(p[:2])
	if !ValidCloseCode(code) {
		return code, "", fmt.Errorf("%w: code %d", ErrInvalidClose, code)
	}
	reason := p[2:]
	if !utf8.Valid(reason) {
		return code, "", fmt.Errorf("%w: reason is not UTF-8", ErrInvalidClose)
	}
	return code, string(reason), nil
}

// ValidCloseCode reports whether code may appear on the wire in a close frame
func ValidCloseCode(code uint16) bool {
	switch {
	case code >= 1000 && code <= 1003:
		return true
	case code >= 1007 && code <= 1014:
		return true
	case code >= 3000 && code <= 4999:
		return true
	}
	return false
}

// OpcodeString returns a human-readable opcode name
func OpcodeString(opcode byte) string {
	switch opcode {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", opcode)
	}
}

// String returns a debug representation of the header
func (h Header) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, Length=%d}",
		h.FIN, OpcodeString(h.Opcode), h.Masked, h.Length)
}
