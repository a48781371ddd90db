package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/discovery"
	"github.com/muurk/wsecho/internal/ui"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find wsecho servers on the local network",
	Long: `Browse mDNS for _wsecho._tcp services and list their WebSocket URLs.

Servers announce themselves when started with --mdns (or mdns.enabled in the
config file).`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVarP(&discoverTimeout, "timeout", "t", discovery.DefaultScanTimeout, "How long to listen for announcements")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader("Discover", "wsecho-cli discover",
		ui.Param{Key: "Service", Value: discovery.ServiceType},
		ui.Param{Key: "Timeout", Value: discoverTimeout.String()},
	)

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout

	endpoints, err := scanner.Scan(cmd.Context())
	if err != nil {
		printer.PrintError("Discovery failed", err,
			"mDNS needs multicast on the network interface",
			"Allow UDP port 5353 through the firewall",
		)
		return err
	}

	if len(endpoints) == 0 {
		printer.PrintWarning("No servers found",
			ui.Param{Key: "Hint", Value: "start one with: wsecho-server serve --mdns"},
		)
		return nil
	}

	return ui.RenderOnce(cmd.OutOrStdout(), renderEndpoints(endpoints, printer.Width()))
}

func renderEndpoints(endpoints []*discovery.Endpoint, width int) string {
	result := ui.NewSuccessResult(fmt.Sprintf("Found %d server(s)", len(endpoints))).SetWidth(width)
	for _, ep := range endpoints {
		var extra []string
		if ep.Engine != "" {
			extra = append(extra, ep.Engine)
		}
		if ep.Version != "" {
			extra = append(extra, ep.Version)
		}
		value := ep.URL()
		if len(extra) > 0 {
			value += "  (" + strings.Join(extra, ", ") + ")"
		}
		result.AddDetail(ep.Instance, value)
	}
	return result.Render() + "\n"
}
