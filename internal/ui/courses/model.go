package courses

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classfeed/internal/feedview"
	"github.com/nhle/classfeed/internal/keys"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/theme"
	"github.com/nhle/classfeed/internal/timefmt"
)

// BackMsg signals the parent to leave the course screen.
type BackMsg struct{}

type row struct {
	n     model.Notification
	label string
}

func (r row) FilterValue() string { return r.n.Title }

type delegate struct{}

func (delegate) Height() int { return 2 }

func (delegate) Spacing() int { return 1 }

func (delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	r, ok := item.(row)
	if !ok {
		return
	}
	title := r.n.Title
	if title == "" {
		title = "(untitled)"
	}
	line := fmt.Sprintf("%s  %s\n%s", title, theme.TimeLabelStyle.Render(r.label), truncate(r.n.Message, m.Width()-4))
	if index == m.Index() {
		fmt.Fprint(w, theme.SelectedItemStyle.Render(line))
		return
	}
	fmt.Fprint(w, theme.ListItemStyle.Render(line))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	for i, r := range runes {
		if r == '\n' {
			runes = runes[:i]
			break
		}
	}
	if n <= 1 || len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n-1]) + "…"
}

// Model lists the announcements of a single course with a sort toggle.
type Model struct {
	screen feedview.CourseScreen
	state  feedview.State
	list   list.Model
	keys   *keys.KeyMap
	now    func() time.Time
	width  int
	height int
}

// New opens the course screen for courseID.
func New(screen feedview.CourseScreen, state feedview.State, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, delegate{}, width, max(height-2, 1))
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	m := Model{
		screen: screen,
		state:  state,
		list:   l,
		keys:   k,
		now:    time.Now,
		width:  width,
		height: height,
	}
	m.rebuild()
	return m
}

// Screen returns the underlying course screen state.
func (m Model) Screen() feedview.CourseScreen {
	return m.screen
}

// SetState replaces the feed state, e.g. after a new aggregation pass.
func (m *Model) SetState(state feedview.State) tea.Cmd {
	m.state = state
	return m.rebuild()
}

func (m *Model) rebuild() tea.Cmd {
	now := m.now()
	notes := m.screen.Items(m.state, now)
	items := make([]list.Item, len(notes))
	for i, n := range notes {
		items[i] = row{n: n, label: timefmt.Label(n, now, m.state.Settings.ShowTimeLabels)}
	}
	return m.list.SetItems(items)
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the course screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.ToggleSort):
			m.screen = m.screen.ToggleSort()
			m.list.Select(0)
			return m, m.rebuild()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the course header and its announcements.
func (m Model) View() string {
	name := m.screen.CourseName
	if name == "" {
		name = m.screen.CourseID
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		theme.ActiveTabStyle.Render(name),
		theme.HelpStyle.Render(fmt.Sprintf("sorted %s (o to toggle)", m.screen.Order)),
	)

	if len(m.list.Items()) == 0 {
		empty := lipgloss.NewStyle().
			Width(m.width).
			Height(max(m.height-2, 1)).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No announcements for this course.")
		return lipgloss.JoinVertical(lipgloss.Left, header, empty)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, m.list.View())
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-2, 1))
}
