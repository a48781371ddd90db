// Package client is a small WebSocket client for wsecho servers.
//
// It wraps a gorilla/websocket Dialer and is used by wsecho-cli and by tests
// that need a real peer. Options.Fragment sets the dialer's write buffer, so
// a message longer than that goes out as several continuation frames.
//
//	c, err := client.Dial(ctx, "ws://localhost:8080/ws", client.Options{Fragment: 4})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	reply, err := c.Echo(ctx, "hello world") // "Echo hello world", sent as 3 frames
package client
