package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/wsecho/internal/client"
)

type fakeSender struct {
	replies map[string]string
	err     error
	sent    []string
}

func (f *fakeSender) Echo(ctx context.Context, text string) (string, error) {
	f.sent = append(f.sent, text)
	if f.err != nil {
		return "", f.err
	}
	return f.replies[text], nil
}

func typeText(m ChatModel, text string) ChatModel {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(ChatModel)
}

// submit presses enter and runs the send command synchronously
func submit(t *testing.T, m ChatModel) ChatModel {
	t.Helper()

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(ChatModel)
	if !m.waiting {
		t.Fatal("model should wait for the reply after enter")
	}
	if cmd == nil {
		t.Fatal("enter should return a command")
	}

	// tea.Batch wraps the send and the spinner tick
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatal("expected a batch of commands")
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		if reply, ok := c().(echoReplyMsg); ok {
			next, _ = m.Update(reply)
			return next.(ChatModel)
		}
	}
	t.Fatal("no echo reply produced")
	return m
}

func TestChatModel_Exchange(t *testing.T) {
	sender := &fakeSender{replies: map[string]string{"hi": "Echo hi"}}
	m := NewChatModel(sender, "ws://localhost:8080/ws", time.Second)

	m = submit(t, typeText(m, "hi"))

	if m.waiting {
		t.Error("model should stop waiting after the reply")
	}
	if len(sender.sent) != 1 || sender.sent[0] != "hi" {
		t.Errorf("sent = %v, want [hi]", sender.sent)
	}
	if m.input.Value() != "" {
		t.Errorf("input should be cleared, got %q", m.input.Value())
	}

	view := m.View()
	for _, want := range []string{"→ hi", "Echo hi", "ws://localhost:8080/ws"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestChatModel_ServerClose(t *testing.T) {
	sender := &fakeSender{err: &client.CloseError{Code: 1009, Reason: "message too large"}}
	m := NewChatModel(sender, "ws://localhost:8080/ws", time.Second)

	m = submit(t, typeText(m, "big"))

	if m.closed == nil || m.closed.Code != 1009 {
		t.Fatalf("closed = %+v, want close 1009", m.closed)
	}
	if !strings.Contains(m.View(), "Connection closed by server: 1009") {
		t.Errorf("View() should report the close:\n%s", m.View())
	}

	// Further sends are ignored
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || next.(ChatModel).waiting {
		t.Error("enter after close should do nothing")
	}
}

func TestChatModel_Error(t *testing.T) {
	sender := &fakeSender{err: errors.New("i/o timeout")}
	m := submit(t, typeText(NewChatModel(sender, "ws://x/ws", time.Second), "hello"))

	if m.closed != nil {
		t.Error("a plain error should not mark the session closed")
	}
	if !strings.Contains(m.View(), "i/o timeout") {
		t.Errorf("View() should show the error:\n%s", m.View())
	}
}

func TestChatModel_Quit(t *testing.T) {
	m := NewChatModel(&fakeSender{}, "ws://x/ws", time.Second)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc should return tea.Quit")
	}
}

func TestChatModel_HistoryBounded(t *testing.T) {
	m := NewChatModel(&fakeSender{}, "ws://x/ws", time.Second)
	for i := 0; i < maxHistory+10; i++ {
		next, _ := m.Update(echoReplyMsg{sent: "x", reply: "Echo x"})
		m = next.(ChatModel)
	}
	if len(m.history) != maxHistory {
		t.Errorf("history length = %d, want %d", len(m.history), maxHistory)
	}
}
