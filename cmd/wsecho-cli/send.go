package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/client"
	"github.com/muurk/wsecho/internal/ui"
)

const defaultServerURL = "ws://localhost:8080/ws"

var (
	sendURL      string
	sendFragment int
	sendTimeout  time.Duration
	sendOrigin   string
	sendBinary   bool
)

var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Send a message and print the echo",
	Long: `Send a text message to a wsecho server and print the reply.

With --fragment N the message is split into frames of at most N bytes, which
exercises the server's reassembly. Without text arguments every line read from
stdin is sent as its own message over one connection.`,
	Example: `  # One message
  wsecho-cli send "hello world"

  # Same message as three frames: "hell", "o wo", "rld"
  wsecho-cli send "hello world" --fragment 4

  # Line by line from stdin
  printf 'one\ntwo\n' | wsecho-cli send

  # See how the server rejects binary data (close 1002)
  wsecho-cli send --binary "raw bytes"`,
	RunE: runSend,
}

func init() {
	f := sendCmd.Flags()
	f.StringVarP(&sendURL, "url", "u", defaultServerURL, "WebSocket URL of the server")
	f.IntVar(&sendFragment, "fragment", 0, "Split messages into frames of at most N bytes (0 = one frame)")
	f.DurationVar(&sendTimeout, "timeout", 10*time.Second, "Time allowed for the whole exchange")
	f.StringVar(&sendOrigin, "origin", "", "Origin header for the handshake")
	f.BoolVar(&sendBinary, "binary", false, "Send the text as a binary message")
}

func sendOptions() client.Options {
	opts := client.Options{Fragment: sendFragment, ReadTimeout: sendTimeout}
	if sendOrigin != "" {
		opts.Header = http.Header{"Origin": []string{sendOrigin}}
	}
	return opts
}

func runSend(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return sendLines(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	}
	text := strings.Join(args, " ")

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Echo",
		Command: "wsecho-cli send",
		Params: []ui.Param{
			{Key: "Server", Value: sendURL},
			{Key: "Message", Value: strconv.Quote(text)},
			{Key: "Fragment", Value: fragmentLabel(sendFragment)},
		},
		StepNames: []string{"Connect", "Send message", "Await echo", "Close"},
		Troubleshooting: []string{
			"Is wsecho-server running? Try: wsecho-server serve",
			"Check the URL path matches the server's --ws-path",
			"Use 'wsecho-cli discover' to find servers on the network",
		},
		Output: cmd.OutOrStdout(),
	})

	return runner.Run("Echo received", func(onStep ui.StepCallback) ([]ui.Param, error) {
		ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
		defer cancel()

		onStep(1, ui.StepRunning, "")
		c, err := client.Dial(ctx, sendURL, sendOptions())
		if err != nil {
			onStep(1, ui.StepFailed, "")
			return nil, err
		}
		defer c.Close()
		onStep(1, ui.StepComplete, "")

		onStep(2, ui.StepRunning, "")
		if sendBinary {
			err = c.SendBinary(ctx, []byte(text))
		} else {
			err = c.Send(ctx, text)
		}
		if err != nil {
			onStep(2, ui.StepFailed, "")
			return nil, err
		}
		onStep(2, ui.StepComplete, frameCount(len(text), sendFragment))

		onStep(3, ui.StepRunning, "")
		reply, err := c.Receive(ctx)
		if err != nil {
			var ce *client.CloseError
			if errors.As(err, &ce) {
				onStep(3, ui.StepFailed, "close "+strconv.Itoa(ce.Code))
			} else {
				onStep(3, ui.StepFailed, "")
			}
			return nil, err
		}
		onStep(3, ui.StepComplete, fmt.Sprintf("%d bytes", len(reply)))

		onStep(4, ui.StepRunning, "")
		if err := c.Close(); err != nil {
			onStep(4, ui.StepFailed, "")
			return nil, err
		}
		onStep(4, ui.StepComplete, "1000")

		return []ui.Param{
			{Key: "Reply", Value: strconv.Quote(reply)},
			{Key: "Bytes", Value: strconv.Itoa(len(reply))},
		}, nil
	})
}

// sendLines sends every input line as one message and prints each reply
func sendLines(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := client.Dial(ctx, sendURL, sendOptions())
	if err != nil {
		return err
	}
	defer c.Close()

	printer := ui.NewPrinter(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		msgCtx, msgCancel := context.WithTimeout(ctx, sendTimeout)
		reply, err := exchange(msgCtx, c, scanner.Text())
		msgCancel()
		if err != nil {
			return err
		}
		printer.PrintEcho(reply)
	}
	return scanner.Err()
}

// exchange sends line as text, or as binary with --binary, and waits for the reply
func exchange(ctx context.Context, c *client.Client, line string) (string, error) {
	if !sendBinary {
		return c.Echo(ctx, line)
	}
	if err := c.SendBinary(ctx, []byte(line)); err != nil {
		return "", err
	}
	return c.Receive(ctx)
}

func fragmentLabel(n int) string {
	if n <= 0 {
		return "off"
	}
	return fmt.Sprintf("%d bytes per frame", n)
}

// frameCount mirrors how the dialer's write buffer splits a message
func frameCount(size, fragment int) string {
	if fragment <= 0 {
		fragment = 4096
	}
	if size <= fragment {
		return "1 frame"
	}
	return fmt.Sprintf("%d frames", (size+fragment-1)/fragment)
}
