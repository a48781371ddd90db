package echo

// DefaultPrefix is prepended to every echoed message
const DefaultPrefix = "Echo "

// Responder turns an assembled message into the reply payload.
// Implementations must be total: every message gets a reply.
type Responder interface {
	Respond(msg *Message) []byte
}

// ResponderFunc adapts an ordinary function to the Responder interface
type ResponderFunc func(msg *Message) []byte

// Respond calls f(msg)
func (f ResponderFunc) Respond(msg *Message) []byte {
	return f(msg)
}

// PrefixResponder replies with a fixed prefix followed by the message text
type PrefixResponder struct {
	Prefix string
}

// NewPrefixResponder creates a responder using prefix
func NewPrefixResponder(prefix string) PrefixResponder {
	return PrefixResponder{Prefix: prefix}
}

// Respond returns Prefix + msg.Text encoded as UTF-8
func (p PrefixResponder) Respond(msg *Message) []byte {
	reply := make([]byte, 0, len(p.Prefix)+len(msg.Text))
	reply = append(reply, p.Prefix...)
	return append(reply, msg.Text...)
}
