package tui

import (
	"errors"
	"fmt"
	"strings"

	"smartsearch/internal/index"
	"smartsearch/internal/llm"
	"smartsearch/internal/rag"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// maxHistoryMessages bounds the conversation context sent to the model
// (10 turns).
const maxHistoryMessages = 20

// Config holds what the chat screen needs from the CLI layer.
type Config struct {
	Cache    *rag.Cache
	UserID   int64
	Username string
}

type chatState int

const (
	chatIdle chatState = iota
	chatAnswering
)

type chatMessage struct {
	role    string
	content string
}

// answerMsg is sent when a question completes.
type answerMsg struct {
	answer string
	err    error
}

// Model is the chat screen: a scrollback viewport over the conversation with
// a single-line input below it.
type Model struct {
	config      Config
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	messages    []chatMessage
	history     []llm.Message
	state       chatState
	width       int
	height      int
	initialized bool
}

// New creates the chat model.
func New(cfg Config) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ti := textinput.New()
	ti.Placeholder = "Ask a question about your documents..."
	ti.CharLimit = 2000
	ti.Focus()

	return Model{
		config:  cfg,
		spinner: sp,
		input:   ti,
		state:   chatIdle,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + gap (1 line).
	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(dimStyle.Render(
		fmt.Sprintf("Chatting as %s. Ask a question about your documents.\n\nCommands: /help, /clear, /exit", m.config.Username)))

	m.input.Width = width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func askQuestion(cfg Config, question string, history []llm.Message) tea.Cmd {
	return func() tea.Msg {
		pipeline, err := cfg.Cache.Get(cfg.UserID)
		if errors.Is(err, index.ErrIndexMissing) {
			return answerMsg{err: fmt.Errorf("no index yet — run 'smartsearch ingest --user %s <files>' first", cfg.Username)}
		}
		if err != nil {
			return answerMsg{err: err}
		}

		answer, _, err := pipeline.Ask(question, history)
		if err != nil {
			return answerMsg{err: err}
		}
		return answerMsg{answer: answer}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case answerMsg:
		m.state = chatIdle
		if msg.err != nil {
			m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
		} else {
			m.messages = append(m.messages, chatMessage{role: "assistant", content: msg.answer})
			m.history = append(m.history, llm.Message{Role: "assistant", Content: msg.answer})
			if len(m.history) > maxHistoryMessages {
				m.history = m.history[len(m.history)-maxHistoryMessages:]
			}
		}
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if m.state != chatIdle {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.state != chatIdle {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			m.input.Reset()

			switch question {
			case "/exit", "/quit":
				return m, tea.Quit
			case "/clear":
				m.messages = nil
				m.history = nil
				m.viewport.SetContent(dimStyle.Render("Conversation cleared."))
				return m, nil
			case "/help":
				helpText := "Commands:\n  /clear  - clear conversation history\n  /exit   - quit\n  /help   - show this help"
				m.messages = append(m.messages, chatMessage{role: "system", content: helpText})
				m.viewport.SetContent(m.renderMessages())
				m.viewport.GotoBottom()
				return m, nil
			}

			m.messages = append(m.messages, chatMessage{role: "user", content: question})
			m.history = append(m.history, llm.Message{Role: "user", Content: question})
			m.state = chatAnswering
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()

			return m, tea.Batch(
				m.spinner.Tick,
				askQuestion(m.config, question, m.history[:len(m.history)-1]),
			)
		}
	}

	if m.state == chatIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return assistantMsgStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return assistantMsgStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m Model) renderMessages() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			sb.WriteString(userMsgStyle.Render("You: ") + msg.content + "\n\n")
		case "assistant":
			sb.WriteString(m.renderMarkdown(msg.content) + "\n\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+msg.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(msg.content) + "\n\n")
		}
	}

	if m.state != chatIdle {
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render("Thinking...") + "\n")
	}

	return sb.String()
}

func (m Model) View() string {
	if !m.initialized {
		return ""
	}

	statusText := "idle"
	if m.state == chatAnswering {
		statusText = "thinking..."
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" smartsearch • %s • %s", m.config.Username, statusText))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}

// Run starts the chat TUI.
func Run(cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
