package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/client"
	"github.com/muurk/wsecho/internal/tui"
)

var (
	chatURL      string
	chatFragment int
	chatTimeout  time.Duration
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive echo session",
	Long: `Open one connection and exchange messages interactively.

Each line you enter is sent as a text message; the echo and its round-trip
time are shown underneath. Press Esc to quit.`,
	Example: `  wsecho-cli chat
  wsecho-cli chat --url ws://10.0.0.5:8080/ws --fragment 8`,
	RunE: runChat,
}

func init() {
	f := chatCmd.Flags()
	f.StringVarP(&chatURL, "url", "u", defaultServerURL, "WebSocket URL of the server")
	f.IntVar(&chatFragment, "fragment", 0, "Split messages into frames of at most N bytes (0 = one frame)")
	f.DurationVar(&chatTimeout, "timeout", 10*time.Second, "Time allowed for each exchange")
}

func runChat(cmd *cobra.Command, args []string) error {
	c, err := client.Dial(cmd.Context(), chatURL, client.Options{Fragment: chatFragment})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()

	model := tui.NewChatModel(c, chatURL, chatTimeout)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
		return fmt.Errorf("chat session failed: %w", err)
	}
	return nil
}
