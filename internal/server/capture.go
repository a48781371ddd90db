package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/echo"
	"github.com/muurk/wsecho/internal/logging"
)

const capturePreviewBytes = 256

// MessageCapture is one received message as written to the capture file
type MessageCapture struct {
	Timestamp    time.Time `json:"timestamp"`
	Session      string    `json:"session"`
	MessageNum   int64     `json:"message_num"`
	RemoteAddr   string    `json:"remote_addr"`
	Engine       string    `json:"engine"`
	MessageType  string    `json:"message_type"`
	Size         int       `json:"size"`
	Frames       int       `json:"frames"`
	TextPreview  string    `json:"text_preview,omitempty"`
	PayloadHex   string    `json:"payload_hex"`
	PayloadASCII string    `json:"payload_ascii"`
}

// captureWriter appends received messages to a daily JSON Lines file.
// A zero dir disables capture.
type captureWriter struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func newCaptureWriter(dir string) (*captureWriter, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	return &captureWriter{dir: dir, now: time.Now}, nil
}

// filename returns the capture file for t (capture-YYYYMMDD.jsonl)
func (c *captureWriter) filename(t time.Time) string {
	return filepath.Join(c.dir, fmt.Sprintf("capture-%s.jsonl", t.Format("20060102")))
}

// Record appends msg to today's capture file. Failures are logged, never returned.
func (c *captureWriter) Record(sess *echo.Session, msg *echo.Message) {
	if c == nil {
		return
	}

	timestamp := c.now()
	payload := msg.Payload
	if len(payload) > capturePreviewBytes {
		payload = payload[:capturePreviewBytes]
	}

	record := MessageCapture{
		Timestamp:    timestamp,
		Session:      sess.ID,
		MessageNum:   sess.Messages() + 1,
		RemoteAddr:   sess.RemoteAddr,
		Engine:       sess.Engine,
		MessageType:  msg.Type.String(),
		Size:         msg.Size,
		Frames:       msg.Frames,
		PayloadHex:   hex.EncodeToString(payload),
		PayloadASCII: logging.ASCII(payload),
	}
	if msg.Type == echo.TextMessage {
		record.TextPreview = textPreview(payload)
	}

	data, err := json.Marshal(record)
	if err != nil {
		logging.Error("Failed to marshal message capture", zap.Error(err))
		return
	}

	filename := c.filename(timestamp)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Append to JSONL file (JSON Lines format - one JSON object per line)
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logging.Error("Failed to open capture file",
			zap.String("filename", filename),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write to capture file",
			zap.String("filename", filename),
			zap.Error(err),
		)
		return
	}

	logging.Debug("Saved message to capture file",
		zap.String("filename", filename),
		zap.String("session", sess.ID),
	)
}

// textPreview drops a character split by the preview cut
func textPreview(p []byte) string {
	for len(p) > 0 && !utf8.Valid(p) {
		p = p[:len(p)-1]
	}
	return string(p)
}
