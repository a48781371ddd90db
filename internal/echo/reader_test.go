package echo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// wireFrame is one frame as a peer would send it
type wireFrame struct {
	typ    MessageType
	data   []byte
	fin    bool
	code   CloseCode
	reason string
	err    error
}

func text(s string, fin bool) wireFrame   { return wireFrame{typ: TextMessage, data: []byte(s), fin: fin} }
func binary(b []byte, fin bool) wireFrame { return wireFrame{typ: BinaryMessage, data: b, fin: fin} }
func closeFrame(code CloseCode, reason string) wireFrame {
	return wireFrame{typ: CloseMessage, fin: true, code: code, reason: reason}
}

// scriptedSource replays frames, splitting each into chunks no larger than
// the caller's buffer the way a streaming transport does. When the script is
// exhausted it blocks until ctx is done.
type scriptedSource struct {
	frames []wireFrame
	cur    *wireFrame
	off    int
	calls  int
}

func newScriptedSource(frames ...wireFrame) *scriptedSource {
	return &scriptedSource{frames: frames}
}

func (s *scriptedSource) ReceiveFrame(ctx context.Context, p []byte) (Frame, error) {
	s.calls++
	if s.cur == nil {
		if len(s.frames) == 0 {
			<-ctx.Done()
			return Frame{}, ctx.Err()
		}
		s.cur = &s.frames[0]
		s.frames = s.frames[1:]
		s.off = 0
	}

	f := s.cur
	if f.err != nil {
		s.cur = nil
		return Frame{}, f.err
	}
	if f.typ == CloseMessage || f.typ == ControlMessage {
		s.cur = nil
		return Frame{Type: f.typ, EndOfMessage: true, CloseCode: f.code, CloseReason: f.reason}, nil
	}

	n := copy(p, f.data[s.off:])
	s.off += n
	last := s.off == len(f.data)
	if last {
		s.cur = nil
	}
	return Frame{N: n, Type: f.typ, EndOfMessage: last && f.fin}, nil
}

func TestReceiveMessage_SingleFrame(t *testing.T) {
	src := newScriptedSource(text("hello world", true))

	msg, err := ReceiveMessage(context.Background(), src, nil, 1024)
	if err != nil {
		t.Fatalf("ReceiveMessage() error = %v", err)
	}
	if msg.Text != "hello world" {
		t.Errorf("Text = %q, want %q", msg.Text, "hello world")
	}
	if msg.Type != TextMessage {
		t.Errorf("Type = %v, want text", msg.Type)
	}
	if msg.Size != 11 || msg.Frames != 1 {
		t.Errorf("Size = %d, Frames = %d, want 11 and 1", msg.Size, msg.Frames)
	}
}

func TestReceiveMessage_Fragments(t *testing.T) {
	src := newScriptedSource(
		text("he", false),
		text("llo ", false),
		text("world", true),
	)

	msg, err := ReceiveMessage(context.Background(), src, nil, 1024)
	if err != nil {
		t.Fatalf("ReceiveMessage() error = %v", err)
	}
	if msg.Text != "hello world" {
		t.Errorf("Text = %q, want %q", msg.Text, "hello world")
	}
	if msg.Frames != 3 {
		t.Errorf("Frames = %d, want 3", msg.Frames)
	}
}

func TestReceiveMessage_FragmentationInvariance(t *testing.T) {
	// Multi-byte runes so some splits fall inside a rune
	want := "héllo wörld ✓ ünïcødé"
	payload := []byte(want)

	for bufSize := 1; bufSize <= 8; bufSize++ {
		for split1 := 0; split1 <= len(payload); split1++ {
			for split2 := split1; split2 <= len(payload); split2 += 3 {
				src := newScriptedSource(
					wireFrame{typ: TextMessage, data: payload[:split1]},
					wireFrame{typ: TextMessage, data: payload[split1:split2]},
					wireFrame{typ: TextMessage, data: payload[split2:], fin: true},
				)

				msg, err := ReceiveMessage(context.Background(), src, make([]byte, bufSize), len(payload))
				if err != nil {
					t.Fatalf("buf=%d splits=(%d,%d): error = %v", bufSize, split1, split2, err)
				}
				if msg.Text != want {
					t.Fatalf("buf=%d splits=(%d,%d): Text = %q", bufSize, split1, split2, msg.Text)
				}
			}
		}
	}
}

func TestReceiveMessage_EmptyMessage(t *testing.T) {
	src := newScriptedSource(text("", true))

	msg, err := ReceiveMessage(context.Background(), src, nil, 16)
	if err != nil {
		t.Fatalf("ReceiveMessage() error = %v", err)
	}
	if msg.Text != "" || msg.Size != 0 {
		t.Errorf("expected empty message, got %q (%d bytes)", msg.Text, msg.Size)
	}
}

func TestReceiveMessage_SizeLimit(t *testing.T) {
	t.Run("exactly at limit", func(t *testing.T) {
		src := newScriptedSource(text("12345", false), text("67890", true))
		msg, err := ReceiveMessage(context.Background(), src, nil, 10)
		if err != nil {
			t.Fatalf("ReceiveMessage() error = %v", err)
		}
		if msg.Size != 10 {
			t.Errorf("Size = %d, want 10", msg.Size)
		}
	})

	t.Run("one byte over", func(t *testing.T) {
		src := newScriptedSource(text("12345", false), text("678901", true))
		msg, err := ReceiveMessage(context.Background(), src, nil, 10)
		if msg != nil {
			t.Error("no partial message may be returned")
		}
		if !errors.Is(err, ErrMessageTooLarge) {
			t.Fatalf("error = %v, want ErrMessageTooLarge", err)
		}
		var tooLarge *MessageTooLargeError
		if !errors.As(err, &tooLarge) || tooLarge.Limit != 10 || tooLarge.Size != 11 {
			t.Errorf("error details = %+v", tooLarge)
		}
	})

	t.Run("stops before end of message", func(t *testing.T) {
		big := strings.Repeat("x", 100)
		src := newScriptedSource(text(big, false), text(big, false), text(big, true))
		_, err := ReceiveMessage(context.Background(), src, make([]byte, 16), 50)
		if !errors.Is(err, ErrMessageTooLarge) {
			t.Fatalf("error = %v, want ErrMessageTooLarge", err)
		}
		// 50 bytes fit in 4 chunks of 16; the 4th chunk crosses the bound
		if src.calls != 4 {
			t.Errorf("ReceiveFrame called %d times, want 4", src.calls)
		}
	})
}

func TestReceiveMessage_DefaultLimit(t *testing.T) {
	big := bytes.Repeat([]byte{'a'}, DefaultMaxMessageBytes+1)
	src := newScriptedSource(wireFrame{typ: TextMessage, data: big, fin: true})

	_, err := ReceiveMessage(context.Background(), src, nil, 0)
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("error = %v, want ErrMessageTooLarge with default limit", err)
	}
}

func TestReceiveMessage_UnexpectedFrameType(t *testing.T) {
	tests := []struct {
		name       string
		frames     []wireFrame
		wantGot    MessageType
		wantIndex  int
		peerClosed bool
	}{
		{
			name:       "close as first frame",
			frames:     []wireFrame{closeFrame(CloseNormalClosure, "bye")},
			wantGot:    CloseMessage,
			wantIndex:  0,
			peerClosed: true,
		},
		{
			name:      "control as first frame",
			frames:    []wireFrame{{typ: ControlMessage, fin: true}},
			wantGot:   ControlMessage,
			wantIndex: 0,
		},
		{
			name:      "binary after text",
			frames:    []wireFrame{text("he", false), binary([]byte("llo"), true)},
			wantGot:   BinaryMessage,
			wantIndex: 1,
		},
		{
			name:      "close mid-message",
			frames:    []wireFrame{text("he", false), text("ll", false), closeFrame(CloseGoingAway, "")},
			wantGot:   CloseMessage,
			wantIndex: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ReceiveMessage(context.Background(), newScriptedSource(tt.frames...), nil, 1024)
			if msg != nil {
				t.Error("no partial message may be returned")
			}
			if !errors.Is(err, ErrUnexpectedFrameType) {
				t.Fatalf("error = %v, want ErrUnexpectedFrameType", err)
			}
			var ufe *UnexpectedFrameTypeError
			if !errors.As(err, &ufe) {
				t.Fatalf("error type = %T", err)
			}
			if ufe.Got != tt.wantGot || ufe.Index != tt.wantIndex {
				t.Errorf("Got = %v, Index = %d, want %v and %d", ufe.Got, ufe.Index, tt.wantGot, tt.wantIndex)
			}
			if ufe.PeerClosed() != tt.peerClosed {
				t.Errorf("PeerClosed() = %v, want %v", ufe.PeerClosed(), tt.peerClosed)
			}
		})
	}
}

func TestReceiveMessage_DecodeError(t *testing.T) {
	src := newScriptedSource(wireFrame{typ: TextMessage, data: []byte{'o', 'k', 0xFF, 'x'}, fin: true})

	msg, err := ReceiveMessage(context.Background(), src, nil, 1024)
	if msg != nil {
		t.Error("no message may be returned on decode failure")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
	if de.Offset != 2 {
		t.Errorf("Offset = %d, want 2", de.Offset)
	}
	if !errors.Is(err, ErrDecode) {
		t.Error("DecodeError should unwrap to ErrDecode")
	}
}

func TestReceiveMessage_BinaryPassesReader(t *testing.T) {
	src := newScriptedSource(binary([]byte{0xFF, 0x00}, true))

	msg, err := ReceiveMessage(context.Background(), src, nil, 1024)
	if err != nil {
		t.Fatalf("ReceiveMessage() error = %v", err)
	}
	if msg.Type != BinaryMessage || msg.Text != "" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestReceiveMessage_TransportError(t *testing.T) {
	src := newScriptedSource(text("he", false), wireFrame{err: io.EOF})

	_, err := ReceiveMessage(context.Background(), src, nil, 1024)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if !errors.Is(err, ErrTransport) || !errors.Is(err, io.EOF) {
		t.Error("TransportError should unwrap to ErrTransport and the cause")
	}
}

func TestReceiveMessage_TransportProtocolViolation(t *testing.T) {
	violation := &UnexpectedFrameTypeError{Want: TextMessage, Got: TextMessage, Index: 1}
	src := newScriptedSource(text("he", false), wireFrame{err: violation})

	_, err := ReceiveMessage(context.Background(), src, nil, 1024)
	if !errors.Is(err, ErrUnexpectedFrameType) {
		t.Fatalf("error = %v, want ErrUnexpectedFrameType", err)
	}
	if errors.Is(err, ErrTransport) {
		t.Error("protocol violations reported by a transport must not be wrapped as transport errors")
	}
}

func TestReceiveMessage_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReceiveMessage(ctx, newScriptedSource(), nil, 1024)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestReceiveMessage_SequentialReuse(t *testing.T) {
	src := newScriptedSource(
		text("first message", true),
		text("2nd", true),
	)
	buf := make([]byte, 4)

	first, err := ReceiveMessage(context.Background(), src, buf, 1024)
	if err != nil {
		t.Fatalf("first ReceiveMessage() error = %v", err)
	}
	second, err := ReceiveMessage(context.Background(), src, buf, 1024)
	if err != nil {
		t.Fatalf("second ReceiveMessage() error = %v", err)
	}

	if first.Text != "first message" {
		t.Errorf("first = %q", first.Text)
	}
	if second.Text != "2nd" {
		t.Errorf("second = %q, leftover bytes from the first message?", second.Text)
	}
}

func TestCloseCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want CloseCode
	}{
		{"too large", &MessageTooLargeError{Limit: 1, Size: 2}, CloseMessageTooBig},
		{"unexpected type", &UnexpectedFrameTypeError{Want: TextMessage, Got: BinaryMessage, Index: 1}, CloseProtocolError},
		{"decode", &DecodeError{}, CloseInvalidPayload},
		{"peer close echoed", &UnexpectedFrameTypeError{Got: CloseMessage, CloseCode: CloseGoingAway}, CloseGoingAway},
		{"peer close without status", &UnexpectedFrameTypeError{Got: CloseMessage}, CloseNormalClosure},
		{"cancelled", &TransportError{Op: "receive", Err: context.Canceled}, CloseGoingAway},
		{"eof", &TransportError{Op: "receive", Err: io.EOF}, CloseAbnormalClosure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := CloseCodeFor(tt.err); got != tt.want {
				t.Errorf("CloseCodeFor() = %v, want %v", got, tt.want)
			}
		})
	}
}
