package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-companion/core/transcript"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

const toolOutputPreview = 120

type companion interface {
	ConversationID() string
	SendText(ctx context.Context, text string) error
	BeginCapture(ctx context.Context) error
	EndCapture(ctx context.Context) error
	IsCapturing() bool
	RefreshTranscript(ctx context.Context) error
}

type (
	transcriptMsg []transcript.DisplayMessage
	captionMsg    string
	replyMsg      struct{ text *string }
	statusMsg     struct {
		text string
		err  error
	}
	captureMsg struct {
		capturing bool
		err       error
	}
)

type uiTheme struct {
	header      lipgloss.Style
	panel       lipgloss.Style
	caption     lipgloss.Style
	user        lipgloss.Style
	assistant   lipgloss.Style
	tool        lipgloss.Style
	muted       lipgloss.Style
	placeholder lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	recording   lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")
	red := lipgloss.Color("#ff5f87")

	return uiTheme{
		header: lipgloss.NewStyle().
			Foreground(text).
			Bold(true).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		caption: lipgloss.NewStyle().
			Foreground(pink).
			Italic(true).
			Padding(0, 1),
		user:        lipgloss.NewStyle().Foreground(blue).Bold(true),
		assistant:   lipgloss.NewStyle().Foreground(pink).Bold(true),
		tool:        lipgloss.NewStyle().Foreground(mint),
		muted:       lipgloss.NewStyle().Foreground(muted),
		placeholder: lipgloss.NewStyle().Foreground(muted).Italic(true),
		status:      lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		errorStatus: lipgloss.NewStyle().Foreground(red).Padding(0, 1),
		recording:   lipgloss.NewStyle().Foreground(red).Bold(true),
	}
}

type model struct {
	session companion
	theme   uiTheme

	viewport viewport.Model
	input    textinput.Model
	ready    bool
	width    int

	messages  []transcript.DisplayMessage
	caption   string
	reply     *string
	capturing bool
	status    string
	err       error
}

func newModel() *model {
	input := textinput.New()
	input.Placeholder = "Say something..."
	input.Prompt = "> "
	input.CharLimit = 2000
	input.Focus()

	return &model{
		theme:  newTheme(),
		input:  input,
		status: "enter send · ctrl+r record · ctrl+l reload · ctrl+c quit",
	}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.render()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := m.input.Value()
			m.input.Reset()
			return m, m.sendText(text)
		case "ctrl+r":
			return m, m.toggleCapture()
		case "ctrl+l":
			return m, m.refresh()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case transcriptMsg:
		m.messages = msg
		m.render()
		return m, nil

	case captionMsg:
		m.caption = string(msg)
		return m, nil

	case replyMsg:
		m.reply = msg.text
		m.render()
		return m, nil

	case captureMsg:
		m.capturing = msg.capturing
		m.err = msg.err
		return m, nil

	case statusMsg:
		m.status, m.err = msg.text, msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := m.theme.header.Render("companion")
	if m.session != nil && m.session.ConversationID() != "" {
		header += m.theme.muted.Render(" · " + m.session.ConversationID())
	}
	if m.capturing {
		header += "  " + m.theme.recording.Render("● recording")
	}

	caption := m.theme.caption.Render(truncate.StringWithTail(m.caption, uint(max(m.width-4, 0)), "…"))

	status := m.theme.status.Render(m.status)
	if m.err != nil {
		status = m.theme.errorStatus.Render(m.err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.theme.panel.Render(m.viewport.View()),
		caption,
		m.input.View(),
		status,
	)
}

// chromeHeight is the number of rows around the transcript viewport.
const chromeHeight = 1 + 2 + 1 + 1 + 1

func (m *model) resize(width, height int) {
	m.width = width
	viewportWidth := max(width-4, 1)
	viewportHeight := max(height-chromeHeight, 1)
	if !m.ready {
		m.viewport = viewport.New(viewportWidth, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = viewportWidth
		m.viewport.Height = viewportHeight
	}
	m.input.Width = max(width-4, 1)
}

func (m *model) render() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(renderTranscript(m.theme, m.messages, m.reply, m.viewport.Width))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func renderTranscript(theme uiTheme, messages []transcript.DisplayMessage, reply *string, width int) string {
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	for _, message := range messages {
		b.WriteString(renderMessage(theme, message, width))
		b.WriteString("\n")
	}
	if reply != nil {
		b.WriteString(theme.assistant.Render("Companion") + theme.muted.Render(" (speaking)") + "\n")
		b.WriteString(wordwrap.String(*reply, width))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMessage(theme uiTheme, message transcript.DisplayMessage, width int) string {
	if message.IsPlaceholder() {
		return theme.placeholder.Render(wordwrap.String(message.Text, width))
	}

	switch message.Role {
	case transcript.RoleTool:
		line := theme.tool.Render(wordwrap.String(message.Text, width))
		if output := previewToolOutput(message.ToolOutput); output != "" {
			line += "\n" + theme.muted.Render(truncate.StringWithTail(output, uint(width), "…"))
		}
		return line
	case transcript.RoleUser:
		return theme.user.Render("You") + "\n" + wordwrap.String(message.Text, width)
	default:
		return theme.assistant.Render("Companion") + "\n" + wordwrap.String(message.Text, width)
	}
}

func previewToolOutput(output any) string {
	if output == nil {
		return ""
	}
	if s, ok := output.(string); ok {
		return truncate.String(s, toolOutputPreview)
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprint(output)
	}
	return truncate.String(string(data), toolOutputPreview)
}

func (m *model) sendText(text string) tea.Cmd {
	if m.session == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	session := m.session
	return func() tea.Msg {
		if err := session.SendText(context.Background(), text); err != nil {
			return statusMsg{err: fmt.Errorf("send failed: %w", err)}
		}
		return statusMsg{text: "sent"}
	}
}

func (m *model) toggleCapture() tea.Cmd {
	if m.session == nil {
		return nil
	}
	session := m.session
	return func() tea.Msg {
		if session.IsCapturing() {
			if err := session.EndCapture(context.Background()); err != nil {
				return captureMsg{capturing: session.IsCapturing(), err: fmt.Errorf("recording failed: %w", err)}
			}
			return captureMsg{capturing: false}
		}
		if err := session.BeginCapture(context.Background()); err != nil {
			return captureMsg{capturing: session.IsCapturing(), err: fmt.Errorf("cannot record: %w", err)}
		}
		return captureMsg{capturing: true}
	}
}

func (m *model) refresh() tea.Cmd {
	if m.session == nil {
		return nil
	}
	session := m.session
	return func() tea.Msg {
		if err := session.RefreshTranscript(context.Background()); err != nil {
			return statusMsg{err: fmt.Errorf("reload failed: %w", err)}
		}
		return statusMsg{text: "transcript reloaded"}
	}
}
