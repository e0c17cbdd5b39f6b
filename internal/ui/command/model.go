package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classfeed/internal/theme"
)

// Name identifies a palette command.
type Name string

const (
	Refresh   Name = "refresh"
	Quit      Name = "quit"
	Configure Name = "configure"
	Settings  Name = "settings"
	Tab       Name = "tab"
	Reset     Name = "reset"
	Help      Name = "help"
)

var aliases = map[string]Name{
	"refresh":   Refresh,
	"sync":      Refresh,
	"quit":      Quit,
	"q":         Quit,
	"configure": Configure,
	"config":    Configure,
	"settings":  Settings,
	"prefs":     Settings,
	"tab":       Tab,
	"reset":     Reset,
	"help":      Help,
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Name Name
	Arg  string
}

// ErrorMsg is emitted when the input is not a known command.
type ErrorMsg struct {
	Input string
	Err   error
}

// Parse resolves a palette line such as "tab course" into a command.
func Parse(line string) (CommandMsg, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return CommandMsg{}, fmt.Errorf("empty command")
	}
	name, ok := aliases[fields[0]]
	if !ok {
		return CommandMsg{}, fmt.Errorf("unknown command %q", fields[0])
	}
	arg := strings.Join(fields[1:], " ")
	if name == Tab && arg == "" {
		return CommandMsg{}, fmt.Errorf("tab needs a name: all, global, course or content")
	}
	return CommandMsg{Name: name, Arg: arg}, nil
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh, settings, tab course, reset..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEnter {
		line := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if line == "" {
			return m, nil
		}
		cmd, err := Parse(line)
		if err != nil {
			return m, func() tea.Msg { return ErrorMsg{Input: line, Err: err} }
		}
		return m, func() tea.Msg { return cmd }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	content := lipgloss.JoinVertical(lipgloss.Left, title, input)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
