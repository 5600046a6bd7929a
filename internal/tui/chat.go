// Package tui implements the interactive chat screen of the docqa client.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Asker is the chat-facing subset of the API client.
type Asker interface {
	Ask(ctx context.Context, sessionID, question string) (*domain.AnswerResult, error)
}

type exchange struct {
	question string
	result   *domain.AnswerResult
	err      error
}

type answerMsg exchange

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx       context.Context
	asker     Asker
	sessionID string
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	exchanges []exchange
	pending   string
	status    string
	ready     bool
}

// New creates a chat model. An empty sessionID starts a new conversation on
// the first question.
func New(ctx context.Context, asker Asker, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, /new to start over, /quit to leave"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	status := "New conversation."
	if sessionID != "" {
		status = "Session " + sessionID
	}

	return Model{
		ctx:       ctx,
		asker:     asker,
		sessionID: sessionID,
		input:     ti,
		viewport:  viewport.New(0, 0),
		spinner:   sp,
		status:    status,
	}
}

// SessionID returns the conversation the model is attached to
func (m Model) SessionID() string { return m.sessionID }

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 + bh // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case answerMsg:
		m.pending = ""
		m.exchanges = append(m.exchanges, exchange(msg))
		switch {
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		case msg.result != nil:
			m.sessionID = msg.result.SessionID
			m.status = "Session " + m.sessionID
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.pending == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" || m.pending != "" {
		return m, nil
	}
	m.input.SetValue("")

	switch q {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/new":
		m.sessionID = ""
		m.exchanges = nil
		m.status = "New conversation."
		m.refresh()
		return m, nil
	}

	m.pending = q
	m.status = "Thinking..."
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, m.ask(q))
}

func (m Model) ask(question string) tea.Cmd {
	ctx, asker, sessionID := m.ctx, m.asker, m.sessionID
	return func() tea.Msg {
		result, err := asker.Ask(ctx, sessionID, question)
		return answerMsg{question: question, result: result, err: err}
	}
}

// View renders the transcript, the input box and the status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("docqa chat")
	status := statusStyle.Render(m.status)
	if m.pending != "" {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.exchanges) == 0 && m.pending == "" {
		return hintStyle.Render("No questions yet.")
	}

	var b strings.Builder
	for _, e := range m.exchanges {
		b.WriteString(questionStyle.Render("you: ") + e.question + "\n")
		switch {
		case e.err != nil:
			b.WriteString(errorStyle.Render("error: "+e.err.Error()) + "\n")
		case !e.result.Confident:
			b.WriteString(refusalStyle.Render(e.result.Answer) + "\n")
		default:
			b.WriteString(e.result.Answer + "\n")
		}
		if e.result != nil && len(e.result.Sources) > 0 {
			b.WriteString(hintStyle.Render(fmt.Sprintf("sources: %s", strings.Join(e.result.Sources, ", "))) + "\n")
		}
		b.WriteString("\n")
	}
	if m.pending != "" {
		b.WriteString(questionStyle.Render("you: ") + m.pending + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	refusalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
