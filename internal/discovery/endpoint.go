package discovery

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Endpoint represents a wsecho server found on the network
type Endpoint struct {
	// Instance is the mDNS instance name (e.g., "studio-mac")
	Instance string

	// Hostname is the mDNS hostname (e.g., "studio-mac.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the HTTP port the server listens on
	Port int

	// Path is the WebSocket path from the TXT record (defaults to "/ws")
	Path string

	// Engine and Version come from the TXT record and may be empty
	Engine  string
	Version string

	// Metadata contains every TXT record key, including the ones above
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the endpoint
func (e *Endpoint) String() string {
	return fmt.Sprintf("%s (%s) at %s", e.Instance, e.Hostname, e.URL())
}

// URL returns the ws:// URL of the echo endpoint
func (e *Endpoint) URL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(e.IP, strconv.Itoa(e.Port)),
		Path:   e.Path,
	}
	return u.String()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (e *Endpoint) GetMetadata(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}
