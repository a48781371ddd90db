// Wsecho-server is a WebSocket echo server with an RSS proxy endpoint.
//
// Every text message a client sends is answered with the configured prefix
// followed by the message. Fragmented messages are reassembled before the
// reply, binary messages are rejected with close code 1002, and oversize
// messages with 1009.
//
// Usage:
//
//	wsecho-server serve [flags]
//	wsecho-server config init
//
// See 'wsecho-server serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configPath is the --config flag shared by every subcommand
var configPath string

var rootCmd = &cobra.Command{
	Use:   "wsecho-server",
	Short: "WebSocket echo server",
	Long: `A WebSocket echo server.

Clients connect to the WebSocket path (default /ws) and every text message is
answered with "Echo " followed by the message. The same listener also serves
an RSS proxy (/rss), Prometheus metrics (/metrics) and a health check (/healthz).

Settings come from defaults, the config file, a .env file, WSECHO_* environment
variables and flags, in that order.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/wsecho/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Line("wsecho-server"))
	},
}
