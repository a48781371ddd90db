package echo

import (
	"strings"
	"testing"
)

func TestPrefixResponder(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		text   string
		want   string
	}{
		{"default prefix", DefaultPrefix, "hello world", "Echo hello world"},
		{"empty message", DefaultPrefix, "", "Echo "},
		{"unicode", DefaultPrefix, "grüße ✓", "Echo grüße ✓"},
		{"custom prefix", ">> ", "ping", ">> ping"},
		{"no prefix", "", "as is", "as is"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewPrefixResponder(tt.prefix)
			got := r.Respond(&Message{Type: TextMessage, Text: tt.text})
			if string(got) != tt.want {
				t.Errorf("Respond() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrefixResponder_DoesNotAliasPayload(t *testing.T) {
	payload := []byte("abc")
	msg := &Message{Type: TextMessage, Payload: payload, Text: string(payload)}

	reply := NewPrefixResponder(DefaultPrefix).Respond(msg)
	reply[len(reply)-1] = 'X'

	if string(payload) != "abc" {
		t.Errorf("reply shares memory with the message payload: %q", payload)
	}
}

func TestResponderFunc(t *testing.T) {
	upper := ResponderFunc(func(msg *Message) []byte {
		return []byte(strings.ToUpper(msg.Text))
	})

	if got := upper.Respond(&Message{Text: "shout"}); string(got) != "SHOUT" {
		t.Errorf("Respond() = %q, want %q", got, "SHOUT")
	}
}
