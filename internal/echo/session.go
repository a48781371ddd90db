package echo

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of one connection
type State int32

const (
	StateOpen State = iota
	StateReceiving
	StateReplying
	StateClosing
	StateClosed
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateReceiving:
		return "receiving"
	case StateReplying:
		return "replying"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Session carries the identity and observable state of one accepted connection.
// Only the goroutine running Handler.Serve changes it; other goroutines may read it.
type Session struct {
	ID         string
	RemoteAddr string
	Engine     string
	StartedAt  time.Time

	state    atomic.Int32
	messages atomic.Int64
}

// NewSession creates a session with a fresh ID in the Open state
func NewSession(remoteAddr, engine string) *Session {
	return &Session{
		ID:         uuid.New().String(),
		RemoteAddr: remoteAddr,
		Engine:     engine,
		StartedAt:  time.Now(),
	}
}

// State returns the current state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Messages returns the number of messages answered so far
func (s *Session) Messages() int64 {
	return s.messages.Load()
}

func (s *Session) setState(to State) State {
	return State(s.state.Swap(int32(to)))
}
