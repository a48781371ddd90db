// Package discovery announces and finds wsecho servers with mDNS.
//
// A server registers a "_wsecho._tcp" service in the "local." domain. The
// TXT record tells clients where the echo endpoint lives:
//
//	path=/ws
//	engine=gorilla
//	version=1.0.0
//
// # Announcing
//
//	shutdown, err := discovery.Announce(discovery.Announcement{
//	    Port:    8080,
//	    Path:    "/ws",
//	    Engine:  "gorilla",
//	    Version: version.Version,
//	})
//	if err != nil {
//	    return err
//	}
//	defer shutdown()
//
// Run does the same and blocks until its context is cancelled, which suits an
// errgroup alongside the HTTP listener.
//
// # Browsing
//
//	endpoints, err := discovery.NewScanner().Scan(ctx)
//	for _, ep := range endpoints {
//	    fmt.Println(ep.URL()) // ws://192.168.1.20:8080/ws
//	}
//
// # Network Requirements
//
//   - Requires multicast support on the network interface
//   - Servers must be on the same local network segment
//   - Firewall must allow mDNS (UDP port 5353)
package discovery
