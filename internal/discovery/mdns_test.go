package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func serviceEntry(instance, host string, port int, txt []string, ips ...string) *zeroconf.ServiceEntry {
	entry := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	entry.HostName = host
	entry.Port = port
	entry.Text = txt
	for _, s := range ips {
		ip := net.ParseIP(s)
		if ip.To4() != nil {
			entry.AddrIPv4 = append(entry.AddrIPv4, ip)
		} else {
			entry.AddrIPv6 = append(entry.AddrIPv6, ip)
		}
	}
	return entry
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name       string
		entry      *zeroconf.ServiceEntry
		wantNil    bool
		wantIP     string
		wantPort   int
		wantPath   string
		wantEngine string
	}{
		{
			name:       "full announcement",
			entry:      serviceEntry("studio", "studio.local.", 8080, []string{"path=/ws", "engine=raw", "version=1.2.0"}, "192.168.4.16"),
			wantIP:     "192.168.4.16",
			wantPort:   8080,
			wantPath:   "/ws",
			wantEngine: "raw",
		},
		{
			name:     "custom path",
			entry:    serviceEntry("lab", "lab.local.", 9000, []string{"path=/echo"}, "10.0.0.5"),
			wantIP:   "10.0.0.5",
			wantPort: 9000,
			wantPath: "/echo",
		},
		{
			name:     "missing path defaults",
			entry:    serviceEntry("lab", "lab.local.", 9000, nil, "10.0.0.5"),
			wantIP:   "10.0.0.5",
			wantPort: 9000,
			wantPath: DefaultPath,
		},
		{
			name:     "relative path defaults",
			entry:    serviceEntry("lab", "lab.local.", 9000, []string{"path=ws"}, "10.0.0.5"),
			wantIP:   "10.0.0.5",
			wantPort: 9000,
			wantPath: DefaultPath,
		},
		{
			name:     "IPv6 only",
			entry:    serviceEntry("v6", "v6.local.", 8080, nil, "fe80::1"),
			wantIP:   "fe80::1",
			wantPort: 8080,
			wantPath: DefaultPath,
		},
		{
			name:     "prefers IPv4",
			entry:    serviceEntry("dual", "dual.local.", 8080, nil, "fe80::2", "192.168.1.50"),
			wantIP:   "192.168.1.50",
			wantPort: 8080,
			wantPath: DefaultPath,
		},
		{
			name:    "no address",
			entry:   serviceEntry("ghost", "ghost.local.", 8080, nil),
			wantNil: true,
		},
		{
			name:    "no port",
			entry:   serviceEntry("ghost", "ghost.local.", 0, nil, "192.168.1.1"),
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if ep != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", ep)
				}
				return
			}
			if ep == nil {
				t.Fatal("parseServiceEntry() = nil, want endpoint")
			}

			if ep.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", ep.IP, tt.wantIP)
			}
			if ep.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", ep.Port, tt.wantPort)
			}
			if ep.Path != tt.wantPath {
				t.Errorf("Path = %v, want %v", ep.Path, tt.wantPath)
			}
			if ep.Engine != tt.wantEngine {
				t.Errorf("Engine = %v, want %v", ep.Engine, tt.wantEngine)
			}
			if ep.Instance != tt.entry.Instance {
				t.Errorf("Instance = %v, want %v", ep.Instance, tt.entry.Instance)
			}
			if time.Since(ep.DiscoveredAt) > time.Second {
				t.Errorf("DiscoveredAt is not recent: %v", ep.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	entry := serviceEntry("studio", "studio.local.", 8080,
		[]string{"path=/ws", "version=1.0", "flag", "note=a=b"}, "192.168.4.16")

	ep := parseServiceEntry(entry)
	if ep == nil {
		t.Fatal("parseServiceEntry() = nil, want endpoint")
	}

	expected := map[string]string{
		"path":    "/ws",
		"version": "1.0",
		"flag":    "", // Key without value
		"note":    "a=b",
	}
	if len(ep.Metadata) != len(expected) {
		t.Errorf("Metadata has %d entries, want %d", len(ep.Metadata), len(expected))
	}
	for key, want := range expected {
		if got := ep.GetMetadata(key); got != want {
			t.Errorf("GetMetadata(%q) = %q, want %q", key, got, want)
		}
	}
	if ep.Version != "1.0" {
		t.Errorf("Version = %q, want 1.0", ep.Version)
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

// Live mDNS browsing needs a multicast-capable network and is exercised
// manually with `wsecho-cli discover`.
