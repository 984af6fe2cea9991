package ui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const defaultTimeout = 2 * time.Minute

type doneMsg struct {
	details []string
	err     error
	took    time.Duration
}

type model struct {
	title   string
	timeout time.Duration
	action  func(context.Context) ([]string, error)

	details []string
	err     error
	took    time.Duration
	done    bool
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		timeout := m.timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		details, err := m.action(ctx)
		return doneMsg{details: details, err: err, took: time.Since(start)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case doneMsg:
		m.details = msg.details
		m.err = msg.err
		m.took = msg.took
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	if !m.done {
		b.WriteString("\nRunning...\n")
		return b.String()
	}
	if m.err != nil {
		b.WriteString(failStyle.Render("FAILED"))
		b.WriteString(": " + m.err.Error())
	} else {
		b.WriteString(okStyle.Render("OK"))
	}
	b.WriteString(" " + dimStyle.Render("("+m.took.Round(time.Millisecond).String()+")"))
	b.WriteString("\n")
	for _, d := range m.details {
		b.WriteString("- " + d + "\n")
	}
	return b.String()
}

// Run executes action under a small TUI and returns its output once the
// action finishes or the timeout elapses.
func Run(title string, timeout time.Duration, action func(context.Context) ([]string, error)) ([]string, error) {
	p := tea.NewProgram(model{title: title, timeout: timeout, action: action})
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	res := final.(model)
	return res.details, res.err
}
