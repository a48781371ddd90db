package discovery

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/logging"
)

// TXT record keys published with every announcement
const (
	TXTPath    = "path"
	TXTEngine  = "engine"
	TXTVersion = "version"
)

// Announcement describes the service a running server publishes
type Announcement struct {
	// Instance is the service instance name; empty means the hostname
	Instance string
	Port     int
	Path     string
	Engine   string
	Version  string
}

// TXT returns the TXT records for the announcement
func (a Announcement) TXT() []string {
	txt := []string{TXTPath + "=" + a.Path}
	if a.Engine != "" {
		txt = append(txt, TXTEngine+"="+a.Engine)
	}
	if a.Version != "" {
		txt = append(txt, TXTVersion+"="+a.Version)
	}
	return txt
}

func (a Announcement) instance() string {
	if a.Instance != "" {
		return a.Instance
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "wsecho"
	}
	// Instance names must not carry the domain
	host, _, _ = strings.Cut(host, ".")
	return "wsecho-" + host
}

// Announce registers the service on every multicast interface and returns
// a function that withdraws it.
func Announce(a Announcement) (func(), error) {
	if a.Port <= 0 {
		return nil, fmt.Errorf("cannot announce port %d", a.Port)
	}

	instance := a.instance()
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, a.Port, a.TXT(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("mDNS service announced",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", a.Port),
		zap.Strings("txt", a.TXT()),
	)

	return server.Shutdown, nil
}

// Run announces the service until ctx is cancelled
func Run(ctx context.Context, a Announcement) error {
	shutdown, err := Announce(a)
	if err != nil {
		return err
	}
	<-ctx.Done()
	shutdown()
	logging.Info("mDNS service withdrawn")
	return nil
}
