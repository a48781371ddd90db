package echo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/logging"
)

const (
	// DefaultCloseTimeout bounds the close handshake before the socket is force-closed
	DefaultCloseTimeout = 5 * time.Second
)

// Conn is one accepted WebSocket connection as seen by the handler.
//
// Close performs the close handshake bounded by ctx and then releases the
// socket. CloseAbnormalClosure skips the handshake and only releases the
// socket. Close must be safe to call after the transport has already failed.
type Conn interface {
	FrameSource
	SendText(ctx context.Context, payload []byte) error
	Close(ctx context.Context, code CloseCode, reason string) error
	RemoteAddr() string
}

// Config holds per-connection policy
type Config struct {
	MaxMessageBytes int
	ChunkSize       int
	CloseTimeout    time.Duration
}

// Hooks are optional observers called from the connection goroutine
type Hooks struct {
	OnStateChange func(s *Session, from, to State)
	OnMessage     func(s *Session, msg *Message)
	OnClose       func(s *Session, code CloseCode, reason string)
}

// Handler runs the receive/reply loop for connections
type Handler struct {
	config    Config
	responder Responder
	hooks     Hooks
}

// NewHandler creates a handler. Zero config values fall back to defaults and
// a nil responder falls back to PrefixResponder with DefaultPrefix.
func NewHandler(config Config, responder Responder, hooks Hooks) *Handler {
	if config.MaxMessageBytes <= 0 {
		config.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = DefaultCloseTimeout
	}
	if responder == nil {
		responder = NewPrefixResponder(DefaultPrefix)
	}
	return &Handler{
		config:    config,
		responder: responder,
		hooks:     hooks,
	}
}

// Serve owns conn until it is closed. It blocks until the peer closes, a
// protocol violation or transport failure occurs, or ctx is cancelled. The
// connection is closed exactly once on every path.
//
// Protocol violations and orderly closes return nil. Transport failures are
// returned as *TransportError for the caller to log.
func (h *Handler) Serve(ctx context.Context, sess *Session, conn Conn) (err error) {
	code, reason := CloseAbnormalClosure, ""

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic serving session %s: %v", sess.ID, r)
			code, reason = CloseInternalServerErr, "internal error"
		}
		h.close(ctx, sess, conn, code, reason)
	}()

	buf := make([]byte, h.config.ChunkSize)
	src := &stateTrackingSource{FrameSource: conn, onFirst: func() {
		h.transition(sess, StateReceiving)
	}}

	for {
		h.transition(sess, StateOpen)
		src.seen = false

		msg, rerr := ReceiveMessage(ctx, src, buf, h.config.MaxMessageBytes)
		if rerr != nil {
			code, reason = CloseCodeFor(rerr)
			if ctx.Err() != nil {
				code, reason = CloseGoingAway, "server shutting down"
				return nil
			}
			return h.receiveFailure(sess, rerr)
		}

		if h.hooks.OnMessage != nil {
			h.hooks.OnMessage(sess, msg)
		}

		if msg.Type != TextMessage {
			logging.Info("Rejecting non-text message",
				zap.String("session", sess.ID),
				zap.String("message_type", msg.Type.String()),
				zap.Int("size", msg.Size),
			)
			code, reason = CloseProtocolError, "text messages only"
			return nil
		}

		logging.LogWebSocketMessage(sess.RemoteAddr, "received", int(TextMessage), msg.Payload)

		h.transition(sess, StateReplying)
		reply := h.responder.Respond(msg)
		if serr := conn.SendText(ctx, reply); serr != nil {
			if ctx.Err() != nil {
				code, reason = CloseGoingAway, "server shutting down"
				return nil
			}
			return &TransportError{Op: "send", Err: serr}
		}
		sess.messages.Add(1)

		logging.LogWebSocketMessage(sess.RemoteAddr, "sent", int(TextMessage), reply)
	}
}

// receiveFailure logs a failed receive and decides what Serve returns
func (h *Handler) receiveFailure(sess *Session, err error) error {
	if _, _, ok := AsPeerClose(err); ok {
		logging.Debug("Peer initiated close", zap.String("session", sess.ID))
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		if te.Timeout() {
			logging.Info("Connection idle, closing",
				zap.String("session", sess.ID),
				zap.String("remote_addr", sess.RemoteAddr),
			)
			return nil
		}
		return err
	}

	logging.Warn("Protocol violation, closing connection",
		zap.String("session", sess.ID),
		zap.String("remote_addr", sess.RemoteAddr),
		zap.Error(err),
	)
	return nil
}

func (h *Handler) close(ctx context.Context, sess *Session, conn Conn, code CloseCode, reason string) {
	h.transition(sess, StateClosing)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.CloseTimeout)
	defer cancel()

	if err := conn.Close(closeCtx, code, reason); err != nil {
		logging.Debug("Close handshake incomplete",
			zap.String("session", sess.ID),
			zap.Error(err),
		)
	}

	h.transition(sess, StateClosed)
	logging.LogClose(sess.RemoteAddr, int(code), reason)

	if h.hooks.OnClose != nil {
		h.hooks.OnClose(sess, code, reason)
	}
}

func (h *Handler) transition(sess *Session, to State) {
	from := sess.setState(to)
	if from != to && h.hooks.OnStateChange != nil {
		h.hooks.OnStateChange(sess, from, to)
	}
}

// stateTrackingSource reports the first frame of each message so the session
// moves from Open to Receiving only once data actually arrives
type stateTrackingSource struct {
	FrameSource
	onFirst func()
	seen    bool
}

func (s *stateTrackingSource) ReceiveFrame(ctx context.Context, p []byte) (Frame, error) {
	f, err := s.FrameSource.ReceiveFrame(ctx, p)
	if err == nil && !s.seen {
		s.seen = true
		s.onFirst()
	}
	return f, err
}
