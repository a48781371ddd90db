// Wsecho-cli talks to wsecho servers.
//
// It sends messages to the echo endpoint (optionally split into small
// frames), runs an interactive chat session, fetches the RSS proxy, finds
// servers on the local network via mDNS and summarizes server capture files.
//
// Usage:
//
//	wsecho-cli send "hello world" --fragment 4
//	wsecho-cli feed --url http://localhost:8080/rss
//	wsecho-cli discover
//	wsecho-cli chat
//	wsecho-cli captures captures/capture-20261019.jsonl
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/logging"
	"github.com/muurk/wsecho/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wsecho-cli",
	Short: "Client for wsecho servers",
	Long: `A command-line client for wsecho servers.

Logging is silent unless WSECHO_LOG_LEVEL is set (debug, info, warn, error).`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(capturesCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Line("wsecho-cli"))
	},
}
