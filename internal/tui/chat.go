package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wsecho/internal/client"
	"github.com/muurk/wsecho/internal/ui"
)

// maxHistory is the number of exchanges kept on screen
const maxHistory = 50

// Sender sends one message and returns the server's reply
type Sender interface {
	Echo(ctx context.Context, text string) (string, error)
}

// Messages for async operations
type echoReplyMsg struct {
	sent  string
	reply string
	rtt   time.Duration
	err   error
}

// chatKeyMap defines key bindings for the chat screen
type chatKeyMap struct {
	Send key.Binding
	Quit key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k chatKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k chatKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Send, k.Quit}}
}

type entry struct {
	sent  string
	reply string
	rtt   time.Duration
	err   error
}

// ChatModel is an interactive session against one echo endpoint
type ChatModel struct {
	sender  Sender
	url     string
	timeout time.Duration

	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    chatKeyMap

	history []entry
	waiting bool
	closed  *client.CloseError

	Width  int
	Height int
}

// NewChatModel creates a chat screen that sends through sender
func NewChatModel(sender Sender, url string, timeout time.Duration) ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message"
	ti.Prompt = "› "
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ui.WarningColor)

	return ChatModel{
		sender:  sender,
		url:     url,
		timeout: timeout,
		input:   ti,
		spinner: sp,
		help:    help.New(),
		keys: chatKeyMap{
			Send: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
			Quit: key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
		},
		Width: ui.MinTerminalWidth,
	}
}

// Init implements tea.Model
func (m ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.input.Width = msg.Width - 6
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Send):
			if m.waiting || m.closed != nil {
				return m, nil
			}
			text := m.input.Value()
			m.input.Reset()
			m.waiting = true
			return m, tea.Batch(m.sendCmd(text), m.spinner.Tick)
		}

	case echoReplyMsg:
		m.waiting = false
		m.history = append(m.history, entry{sent: msg.sent, reply: msg.reply, rtt: msg.rtt, err: msg.err})
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
		var ce *client.CloseError
		if errors.As(msg.err, &ce) {
			m.closed = ce
			m.input.Blur()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sendCmd performs the exchange off the UI goroutine
func (m ChatModel) sendCmd(text string) tea.Cmd {
	sender, timeout := m.sender, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		reply, err := sender.Echo(ctx, text)
		return echoReplyMsg{sent: text, reply: reply, rtt: time.Since(start), err: err}
	}
}

// View implements tea.Model
func (m ChatModel) View() string {
	var b strings.Builder

	b.WriteString(ui.NewHeader("Chat", "wsecho-cli chat", ui.Param{Key: "Server", Value: m.url}).SetWidth(m.Width).Render())
	b.WriteString("\n\n")

	history := m.history
	if m.Height > 0 {
		// Header, input and help take about 10 lines; each exchange takes 2
		if fit := (m.Height - 10) / 2; fit > 0 && len(history) > fit {
			history = history[len(history)-fit:]
		}
	}
	for _, e := range history {
		b.WriteString("  " + ui.StepNoteStyle.Render("→") + " " + e.sent + "\n")
		if e.err != nil {
			b.WriteString("  " + ui.ErrorMessageStyle.Render(ui.FailureMarker+" "+e.err.Error()) + "\n")
			continue
		}
		b.WriteString("  " + ui.StepNoteStyle.Render("←") + " " + ui.EchoStyle.Render(e.reply) +
			"  " + ui.StepNoteStyle.Render(fmt.Sprintf("(%s)", e.rtt.Round(time.Microsecond))) + "\n")
	}
	b.WriteString("\n")

	switch {
	case m.closed != nil:
		b.WriteString(ui.ErrorTitleStyle.Render(fmt.Sprintf("  Connection closed by server: %d %s", m.closed.Code, m.closed.Reason)))
		b.WriteString("\n")
	case m.waiting:
		b.WriteString("  " + m.spinner.View() + " waiting for echo…\n")
	default:
		b.WriteString("  " + m.input.View() + "\n")
	}

	b.WriteString("\n  " + m.help.View(m.keys) + "\n")
	return b.String()
}
