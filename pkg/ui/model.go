// Package ui is the interactive shell: a prompt for INC:/BUS=:
// commands over a live engine, with results in a scrollable viewport.
// It is a front end only; every command goes through the same engine
// entry points the batch interpreter uses.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/engine"
)

// Model holds the shell state.
type Model struct {
	engine   *engine.Engine
	input    textarea.Model
	results  viewport.Model
	history  []string
	lastTime time.Duration
	width    int
	height   int
	keys     keyMap
}

// NewModel builds the shell over an initialized engine.
func NewModel(eng *engine.Engine) Model {
	ta := textarea.New()
	ta.Placeholder = "INC:<year> or BUS=:<year>"
	ta.CharLimit = 64
	ta.ShowLineNumbers = false
	ta.SetHeight(1)
	ta.Focus()

	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(textMuted)
	ta.FocusedStyle.Text = lipgloss.NewStyle().Foreground(textPrimary)

	vp := viewport.New(80, 16)
	vp.Style = resultStyle
	vp.SetContent("Type a command and press enter.")

	return Model{
		engine:  eng,
		input:   ta,
		results: vp,
		keys:    keys,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.results.Width = msg.Width - 4
		m.results.Height = msg.Height - 8
		m.input.SetWidth(msg.Width - 4)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Clear):
			m.input.Reset()
			return m, nil

		case key.Matches(msg, m.keys.ScrollUp):
			m.results.LineUp(1)
			return m, nil

		case key.Matches(msg, m.keys.ScrollDown):
			m.results.LineDown(1)
			return m, nil

		case key.Matches(msg, m.keys.Execute):
			line := strings.TrimSpace(m.input.Value())
			if line != "" {
				m.runCommand(line)
				m.input.Reset()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// runCommand parses and executes one line, appending its outcome to
// the history shown in the viewport.
func (m *Model) runCommand(line string) {
	started := time.Now()

	cmd, err := engine.ParseCommandLine(line)
	if err != nil {
		m.appendResult(errorStyle.Render(fmt.Sprintf("%s → %v", line, err)))
		return
	}

	switch cmd.Kind {
	case engine.CommandInsert:
		n, err := m.engine.InsertYear(cmd.Year)
		if err != nil {
			m.appendResult(errorStyle.Render(fmt.Sprintf("%s → %v", line, err)))
			return
		}
		m.appendResult(fmt.Sprintf("%s → inserted %d", line, n))

	case engine.CommandSearch:
		records, err := m.engine.Search(cmd.Year)
		if err != nil {
			m.appendResult(errorStyle.Render(fmt.Sprintf("%s → %v", line, err)))
			return
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s → %d found", line, len(records))
		for _, rec := range records {
			fmt.Fprintf(&b, "\n  %s", rec)
		}
		m.appendResult(b.String())
	}

	m.lastTime = time.Since(started)
}

func (m *Model) appendResult(entry string) {
	m.history = append(m.history, entry)
	m.results.SetContent(strings.Join(m.history, "\n"))
	m.results.GotoBottom()
}

// View implements tea.Model.
func (m Model) View() string {
	title := titleStyle.Render("YggdrasilVinum")

	status := statusBarStyle.Render(fmt.Sprintf(
		"height: %d · last command: %v · enter run · ctrl+l clear · ctrl+c quit",
		m.engine.Height(), m.lastTime.Round(time.Microsecond)))

	header := resultHeaderStyle.Render("Results")

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		editorStyle.Render(m.input.View()),
		header,
		m.results.View(),
		status,
	)
}
