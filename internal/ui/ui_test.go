package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success keeps detail order",
			result: NewSuccessResult("Echo received", Param{"Reply", "Echo hi"}, Param{"Bytes", "7"}),
			want:   []string{"SUCCESS", "Echo received", "Reply:", "Echo hi", "Bytes:"},
		},
		{
			name:   "failure shows error and tips",
			result: NewFailureResult("Echo failed", errors.New("connection refused"), "Is wsecho-server running?"),
			want:   []string{"FAILED", "Error: connection refused", "Troubleshooting:", "Is wsecho-server running?"},
		},
		{
			name:   "warning",
			result: NewWarningResult("No servers found"),
			want:   []string{"WARNING", "No servers found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("Render() missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestResult_DetailOrder(t *testing.T) {
	out := NewSuccessResult("ok").AddDetail("First", "1").AddDetail("Second", "2").SetWidth(80).Render()
	if strings.Index(out, "First") > strings.Index(out, "Second") {
		t.Errorf("details rendered out of order:\n%s", out)
	}
}

func TestHeader_Render(t *testing.T) {
	out := NewHeader("Echo", "wsecho-cli send", Param{"Server", "ws://localhost:8080/ws"}).SetWidth(80).Render()

	for _, w := range []string{"ECHO", "wsecho-cli send", "Server:", "ws://localhost:8080/ws"} {
		if !strings.Contains(out, w) {
			t.Errorf("Render() missing %q:\n%s", w, out)
		}
	}
}

func TestProgress_UpdateStep(t *testing.T) {
	p := NewProgress("Connect", "Send", "Await echo", "Close")

	p.UpdateStep(1, StepRunning, "")
	if p.Current != 1 || p.Percent != 0 {
		t.Errorf("after start: Current=%d Percent=%v", p.Current, p.Percent)
	}

	p.UpdateStep(1, StepComplete, "")
	p.UpdateStep(2, StepSkipped, "")
	if p.Percent != 0.5 {
		t.Errorf("Percent = %v, want 0.5", p.Percent)
	}

	p.UpdateStep(3, StepFailed, "timeout")
	if p.Percent != 0.5 {
		t.Errorf("failed step should not advance Percent, got %v", p.Percent)
	}

	// Out of range is ignored
	p.UpdateStep(9, StepComplete, "")
	p.UpdateStep(0, StepComplete, "")

	out := p.Render()
	for _, w := range []string{"[1/4] Connect", StepMarkerComplete, "(timeout)", "50%"} {
		if !strings.Contains(out, w) {
			t.Errorf("Render() missing %q:\n%s", w, out)
		}
	}
}

func TestRunner_Run(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:     "Echo",
		Command:   "wsecho-cli send",
		StepNames: []string{"Connect", "Send"},
		Output:    &buf,
	})

	err := r.Run("Echo received", func(onStep StepCallback) ([]Param, error) {
		onStep(1, StepRunning, "")
		onStep(1, StepComplete, "")
		onStep(2, StepComplete, "3 fragments")
		return []Param{{Key: "Reply", Value: "Echo hi"}}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := buf.String()
	for _, w := range []string{"ECHO", "(3 fragments)", "SUCCESS", "Echo hi", "Duration:"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestRunner_RunFailure(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:           "Feed",
		Command:         "wsecho-cli feed",
		Troubleshooting: []string{"Check the upstream feed URL"},
		Output:          &buf,
	})

	want := errors.New("502 Bad Gateway")
	if err := r.Run("Feed fetched", func(StepCallback) ([]Param, error) { return nil, want }); !errors.Is(err, want) {
		t.Fatalf("Run() error = %v, want %v", err, want)
	}

	out := buf.String()
	if !strings.Contains(out, "FAILED") || !strings.Contains(out, "Check the upstream feed URL") {
		t.Errorf("failure output incomplete:\n%s", out)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true}, // no trailing newline
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			if got := Confirm(strings.NewReader(tt.input), &out, "File exists", "Overwrite?"); got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "Overwrite? [y/N]") {
				t.Errorf("prompt missing from output: %q", out.String())
			}
		})
	}
}
