package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classfeed/internal/keys"
	"github.com/nhle/classfeed/internal/theme"
)

// section is a titled group of bindings.
type section struct {
	title    string
	bindings []key.Binding
}

// Model lists the key bindings of each screen and explains the feed
// markers.
type Model struct {
	sections []section
	help     help.Model
	width    int
	height   int
}

// New builds the help screen for k.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		sections: []section{
			{"Feed", []key.Binding{k.Up, k.Down, k.Select, k.NextTab, k.PrevTab}},
			{"Course announcements", []key.Binding{k.ToggleSort, k.Back}},
			{"General", []key.Binding{k.Refresh, k.Settings, k.Reconfigure, k.Command, k.Help, k.Quit}},
		},
		help:   help.New(),
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update is a no-op; the root model closes the overlay.
func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the overlay.
func (m Model) View() string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	var b strings.Builder
	b.WriteString(heading.MarginBottom(1).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, s := range m.sections {
		b.WriteString(heading.Render(s.title))
		b.WriteString("\n")
		b.WriteString(m.help.FullHelpView([][]key.Binding{s.bindings}))
		b.WriteString("\n\n")
	}

	b.WriteString(heading.Render("Markers"))
	b.WriteString("\n")
	b.WriteString(theme.NewDotStyle.Render("●") + " new since you last opened it\n")
	b.WriteString("Tab (n) counts items in the retention window\n")
	b.WriteString(theme.ErrorBannerStyle.Render("⚠") + " a category could not be loaded")

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(b.String())
}

// SetSize updates the overlay dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(width-6, 0)
}
