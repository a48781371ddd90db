package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/logging"
	"github.com/muurk/wsecho/internal/server"
	"github.com/muurk/wsecho/internal/ui"
)

var (
	capturesSession string
	capturesDump    bool
)

var capturesCmd = &cobra.Command{
	Use:   "captures <file.jsonl>",
	Short: "Summarize a server message capture file",
	Long: `Read a capture file written by wsecho-server --capture-dir and summarize it.

Messages are grouped by session. With --dump every message is printed with a
hex dump of its stored payload.`,
	Example: `  wsecho-cli captures captures/capture-20261019.jsonl
  wsecho-cli captures captures/capture-20261019.jsonl --dump --session 6f1c`,
	Args: cobra.ExactArgs(1),
	RunE: runCaptures,
}

func init() {
	capturesCmd.Flags().StringVar(&capturesSession, "session", "", "Only include sessions whose ID starts with this prefix")
	capturesCmd.Flags().BoolVar(&capturesDump, "dump", false, "Print every message with a hex dump")
}

// sessionSummary aggregates the captured messages of one connection
type sessionSummary struct {
	ID         string
	RemoteAddr string
	Engine     string
	Messages   int
	Frames     int
	Bytes      int
	Largest    int
	Types      map[string]int
}

// captureReport is the parsed content of one capture file
type captureReport struct {
	Messages []server.MessageCapture
	Sessions []*sessionSummary
	Skipped  int
}

func runCaptures(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer f.Close()

	report, err := readCaptures(f, capturesSession)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := ui.RenderOnce(out, renderCaptureReport(report, args[0], ui.GetTerminalWidth())); err != nil {
		return err
	}
	if capturesDump {
		writeCaptureDump(out, report.Messages)
	}
	return nil
}

// readCaptures parses JSON Lines from r. Lines that do not parse are counted
// and skipped so a truncated final line does not hide the rest of the file.
func readCaptures(r io.Reader, sessionPrefix string) (*captureReport, error) {
	report := &captureReport{}
	bySession := make(map[string]*sessionSummary)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var msg server.MessageCapture
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			logging.Debug(fmt.Sprintf("skipping capture line %d: %v", lineNum, err))
			report.Skipped++
			continue
		}
		if sessionPrefix != "" && !strings.HasPrefix(msg.Session, sessionPrefix) {
			continue
		}

		report.Messages = append(report.Messages, msg)

		s, ok := bySession[msg.Session]
		if !ok {
			s = &sessionSummary{
				ID:         msg.Session,
				RemoteAddr: msg.RemoteAddr,
				Engine:     msg.Engine,
				Types:      make(map[string]int),
			}
			bySession[msg.Session] = s
			report.Sessions = append(report.Sessions, s)
		}
		s.Messages++
		s.Frames += msg.Frames
		s.Bytes += msg.Size
		s.Types[msg.MessageType]++
		if msg.Size > s.Largest {
			s.Largest = msg.Size
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capture file: %w", err)
	}
	return report, nil
}

func renderCaptureReport(report *captureReport, filename string, width int) string {
	if len(report.Messages) == 0 {
		return ui.NewWarningResult("No messages captured",
			ui.Param{Key: "File", Value: filename},
			ui.Param{Key: "Skipped lines", Value: fmt.Sprintf("%d", report.Skipped)},
		).SetWidth(width).Render()
	}

	totalBytes := 0
	for _, s := range report.Sessions {
		totalBytes += s.Bytes
	}

	var b strings.Builder
	b.WriteString(ui.NewHeader("Capture Summary", "wsecho-cli captures",
		ui.Param{Key: "File", Value: filename},
		ui.Param{Key: "Messages", Value: fmt.Sprintf("%d", len(report.Messages))},
		ui.Param{Key: "Sessions", Value: fmt.Sprintf("%d", len(report.Sessions))},
		ui.Param{Key: "Bytes", Value: fmt.Sprintf("%d", totalBytes)},
	).SetWidth(width).Render())
	b.WriteString("\n\n")

	for _, s := range report.Sessions {
		b.WriteString(ui.HeaderParamValueStyle.Render(fmt.Sprintf("  %s  %s  (%s)", shortSession(s.ID), s.RemoteAddr, s.Engine)))
		b.WriteString("\n")
		b.WriteString(ui.StepNoteStyle.Render(fmt.Sprintf("    %d messages in %d frames, %d bytes, largest %d, %s",
			s.Messages, s.Frames, s.Bytes, s.Largest, formatTypes(s.Types))))
		b.WriteString("\n")
	}

	if report.Skipped > 0 {
		b.WriteString("\n")
		b.WriteString(ui.ErrorMessageStyle.Render(fmt.Sprintf("  %s %d lines could not be parsed", ui.WarningMarker, report.Skipped)))
		b.WriteString("\n")
	}
	return b.String()
}

// writeCaptureDump prints each message followed by a 16-byte-per-row hex dump
func writeCaptureDump(w io.Writer, messages []server.MessageCapture) {
	for _, msg := range messages {
		fmt.Fprintf(w, "\n#%d %s %s %d bytes, %d frames, %s\n",
			msg.MessageNum, shortSession(msg.Session), msg.MessageType, msg.Size, msg.Frames,
			msg.Timestamp.Format("15:04:05.000"))

		payload, err := hex.DecodeString(msg.PayloadHex)
		if err != nil {
			fmt.Fprintf(w, "  invalid payload_hex: %v\n", err)
			continue
		}
		fmt.Fprint(w, hex.Dump(payload))
		if len(payload) < msg.Size {
			fmt.Fprintf(w, "  ... %d more bytes not captured\n", msg.Size-len(payload))
		}
	}
}

func formatTypes(types map[string]int) string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, types[name])
	}
	return strings.Join(parts, " ")
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
