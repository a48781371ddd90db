package echo

import "fmt"

// MessageType classifies a frame or an assembled message
type MessageType int

const (
	TextMessage MessageType = iota + 1
	BinaryMessage
	CloseMessage
	// ControlMessage covers ping/pong frames for transports that surface them
	ControlMessage
)

// String returns a human-readable message type name
func (t MessageType) String() string {
	switch t {
	case 0:
		return "none"
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	case CloseMessage:
		return "close"
	case ControlMessage:
		return "control"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// CloseCode is a WebSocket close status code
type CloseCode int

const (
	CloseNormalClosure     CloseCode = 1000
	CloseGoingAway         CloseCode = 1001
	CloseProtocolError     CloseCode = 1002
	CloseUnsupportedData   CloseCode = 1003
	CloseNoStatusReceived  CloseCode = 1005
	CloseAbnormalClosure   CloseCode = 1006
	CloseInvalidPayload    CloseCode = 1007
	ClosePolicyViolation   CloseCode = 1008
	CloseMessageTooBig     CloseCode = 1009
	CloseInternalServerErr CloseCode = 1011
)

// String returns the registered name of the close code
func (c CloseCode) String() string {
	switch c {
	case CloseNormalClosure:
		return "normal_closure"
	case CloseGoingAway:
		return "going_away"
	case CloseProtocolError:
		return "protocol_error"
	case CloseUnsupportedData:
		return "unsupported_data"
	case CloseNoStatusReceived:
		return "no_status"
	case CloseAbnormalClosure:
		return "abnormal_closure"
	case CloseInvalidPayload:
		return "invalid_payload"
	case ClosePolicyViolation:
		return "policy_violation"
	case CloseMessageTooBig:
		return "message_too_big"
	case CloseInternalServerErr:
		return "internal_error"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

// Frame is one chunk received from a connection. The payload bytes live in
// the buffer passed to ReceiveFrame; N says how many were written.
type Frame struct {
	N            int
	Type         MessageType
	EndOfMessage bool

	// Set when Type is CloseMessage
	CloseCode   CloseCode
	CloseReason string
}

// Message is a complete logical message assembled from one or more frames
type Message struct {
	Type    MessageType
	Payload []byte
	Text    string // Decoded payload, set for text messages only
	Size    int
	Frames  int // Number of frames the message was assembled from
}
