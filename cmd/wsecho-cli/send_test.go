package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/muurk/wsecho/internal/client"
	"github.com/muurk/wsecho/internal/discovery"
	"github.com/muurk/wsecho/internal/server"
)

func TestFrameCount(t *testing.T) {
	tests := []struct {
		size, fragment int
		want           string
	}{
		{11, 4, "3 frames"},
		{12, 4, "3 frames"},
		{4, 4, "1 frame"},
		{0, 4, "1 frame"},
		{100, 0, "1 frame"},
		{5000, 0, "2 frames"},
	}

	for _, tt := range tests {
		if got := frameCount(tt.size, tt.fragment); got != tt.want {
			t.Errorf("frameCount(%d, %d) = %q, want %q", tt.size, tt.fragment, got, tt.want)
		}
	}
}

func TestSendLines(t *testing.T) {
	s, err := server.New(&server.Config{}, server.Dependencies{})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		ts.Close()
	})

	oldURL, oldFragment, oldTimeout := sendURL, sendFragment, sendTimeout
	t.Cleanup(func() { sendURL, sendFragment, sendTimeout = oldURL, oldFragment, oldTimeout })
	sendURL = "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	sendFragment = 2
	sendTimeout = 2 * time.Second

	var out bytes.Buffer
	if err := sendLines(context.Background(), strings.NewReader("one\ntwo words\n"), &out); err != nil {
		t.Fatalf("sendLines() error = %v", err)
	}

	for _, want := range []string{"Echo one", "Echo two words"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSendLines_Binary(t *testing.T) {
	s, err := server.New(&server.Config{}, server.Dependencies{})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		ts.Close()
	})

	oldURL, oldFragment, oldTimeout, oldBinary := sendURL, sendFragment, sendTimeout, sendBinary
	t.Cleanup(func() { sendURL, sendFragment, sendTimeout, sendBinary = oldURL, oldFragment, oldTimeout, oldBinary })
	sendURL = "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	sendFragment = 0
	sendTimeout = 2 * time.Second
	sendBinary = true

	var out bytes.Buffer
	err = sendLines(context.Background(), strings.NewReader("raw bytes\n"), &out)

	// The server only accepts text, so a binary line ends the session with 1002
	var ce *client.CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("sendLines() error = %v, want *client.CloseError", err)
	}
	if ce.Code != 1002 {
		t.Errorf("close code = %d, want 1002", ce.Code)
	}
	if strings.Contains(out.String(), "Echo raw bytes") {
		t.Errorf("binary line was echoed:\n%s", out.String())
	}
}

func TestRenderEndpoints(t *testing.T) {
	out := renderEndpoints([]*discovery.Endpoint{
		{Instance: "studio", IP: "192.168.1.20", Port: 8080, Path: "/ws", Engine: "raw", Version: "1.0.0"},
		{Instance: "lab", IP: "10.0.0.5", Port: 9000, Path: "/echo"},
	}, 100)

	for _, want := range []string{"Found 2 server(s)", "ws://192.168.1.20:8080/ws", "(raw, 1.0.0)", "ws://10.0.0.5:9000/echo"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
