package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/feed"
	"github.com/muurk/wsecho/internal/ui"
)

var (
	feedURL     string
	feedTimeout time.Duration
	feedOutput  string
	feedRaw     bool
	feedRetries int
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Fetch the server's RSS proxy endpoint",
	Long: `Fetch the RSS document served by a wsecho server's feed endpoint.

A 502 or 504 from the server means its upstream feed could not be reached;
the echo endpoint keeps working regardless.`,
	Example: `  # Summary box
  wsecho-cli feed

  # Save the document
  wsecho-cli feed -o feed.xml

  # Pipe the XML somewhere else
  wsecho-cli feed --raw | xmllint --format -`,
	RunE: runFeed,
}

func init() {
	f := feedCmd.Flags()
	f.StringVarP(&feedURL, "url", "u", "http://localhost:8080/rss", "Feed endpoint of the server")
	f.DurationVar(&feedTimeout, "timeout", feed.DefaultTimeout, "Request timeout")
	f.StringVarP(&feedOutput, "output", "o", "", "Write the document to this file")
	f.BoolVar(&feedRaw, "raw", false, "Print only the document")
	f.IntVar(&feedRetries, "retries", 1, "Extra attempts after a retryable failure")
}

func runFeed(cmd *cobra.Command, args []string) error {
	fetcher := feed.NewFetcher(feed.NewHTTPClient(feedTimeout, 1))
	fetcher.MaxRetries = feedRetries

	if feedRaw {
		body, _, err := fetcher.Fetch(cmd.Context(), feedURL)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(body)
		return err
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:     "Feed",
		Command:   "wsecho-cli feed",
		Params:    []ui.Param{{Key: "URL", Value: feedURL}},
		StepNames: []string{"Fetch document", "Save document"},
		Troubleshooting: []string{
			"A 502 or 504 means the server could not reach its upstream feed",
			"Check the server's feed.url setting (WSECHO_FEED_URL)",
			"Is wsecho-server running? Try: wsecho-server serve",
		},
		Output: cmd.OutOrStdout(),
	})

	return runner.Run("Feed fetched", func(onStep ui.StepCallback) ([]ui.Param, error) {
		onStep(1, ui.StepRunning, "")
		body, contentType, err := fetcher.Fetch(cmd.Context(), feedURL)
		if err != nil {
			onStep(1, ui.StepFailed, feed.ShortMessage(err))
			return nil, err
		}
		onStep(1, ui.StepComplete, fmt.Sprintf("%d bytes", len(body)))

		details := []ui.Param{
			{Key: "Content-Type", Value: contentType},
			{Key: "Size", Value: strconv.Itoa(len(body)) + " bytes"},
		}

		if feedOutput == "" {
			onStep(2, ui.StepSkipped, "no --output")
			return details, nil
		}
		onStep(2, ui.StepRunning, "")
		if err := os.WriteFile(feedOutput, body, 0644); err != nil {
			onStep(2, ui.StepFailed, "")
			return nil, fmt.Errorf("failed to write %s: %w", feedOutput, err)
		}
		onStep(2, ui.StepComplete, feedOutput)

		return append(details, ui.Param{Key: "Saved to", Value: feedOutput}), nil
	})
}
