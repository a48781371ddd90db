// Package echo implements the per-connection side of the echo endpoint.
//
// A transport adapts one accepted WebSocket into a Conn, which yields frames
// in chunks through ReceiveFrame. ReceiveMessage assembles those chunks into
// a complete Message, enforcing a size bound and frame-type consistency, and
// Handler.Serve runs the receive/reply loop until the peer closes, a protocol
// violation occurs or the context is cancelled.
//
// Every failure maps to a close status via CloseCodeFor:
//
//	peer close                1000, or the peer's own code
//	shutdown / idle timeout   1001
//	binary or mixed frames    1002
//	invalid UTF-8             1007
//	message over the bound    1009
//	recovered panic           1011
//
// Replies are produced by a Responder. The default PrefixResponder prepends
// "Echo " to the received text.
package echo
