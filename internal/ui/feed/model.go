package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classfeed/internal/aggregate"
	"github.com/nhle/classfeed/internal/feedview"
	"github.com/nhle/classfeed/internal/keys"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/theme"
	"github.com/nhle/classfeed/internal/timefmt"
)

// ClickedMsg is sent when the user opens a clickable notification. Settings
// already carries the updated seen map and must be persisted by the parent.
type ClickedMsg struct {
	Notification model.Notification
	Settings     model.NotificationSettings
}

// Model is the tabbed notification feed.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	state  feedview.State
	loaded bool
	now    func() time.Time
	width  int
	height int
}

// New creates a feed model for the given view state.
func New(state feedview.State, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, listHeight(height))
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return Model{
		list:   l,
		keys:   k,
		state:  state,
		now:    time.Now,
		width:  width,
		height: height,
	}
}

// listHeight leaves room for the tab strip and the error banner.
func listHeight(height int) int {
	return max(height-3, 1)
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// State returns the current view state.
func (m Model) State() feedview.State {
	return m.state
}

// Loaded reports whether a feed has been received.
func (m Model) Loaded() bool {
	return m.loaded
}

// SetFeed replaces the aggregated feed and rebuilds the rows.
func (m *Model) SetFeed(res aggregate.Result) tea.Cmd {
	m.state = m.state.WithFeed(res)
	m.loaded = true
	return m.rebuild()
}

// SetSettings replaces the notification settings and rebuilds the rows.
func (m *Model) SetSettings(settings model.NotificationSettings) tea.Cmd {
	m.state = m.state.WithSettings(settings)
	return m.rebuild()
}

// Refresh re-evaluates time labels and retention against the clock.
func (m *Model) Refresh() tea.Cmd {
	return m.rebuild()
}

func (m *Model) rebuild() tea.Cmd {
	now := m.now()
	notes := m.state.Items(now)
	items := make([]list.Item, len(notes))
	for i, n := range notes {
		items[i] = NotificationItem{
			Notification: n,
			New:          m.state.IsNew(n, now),
			TimeLabel:    timefmt.Label(n, now, m.state.Settings.ShowTimeLabels),
		}
	}
	return m.list.SetItems(items)
}

// Update handles messages for the feed view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Select):
			return m.open()

		case key.Matches(msg, m.keys.NextTab):
			return m.cycleTab(1)

		case key.Matches(msg, m.keys.PrevTab):
			return m.cycleTab(-1)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// SelectTab activates tab if the role has it.
func (m *Model) SelectTab(tab feedview.Tab) tea.Cmd {
	m.state = m.state.SelectTab(tab)
	m.list.Select(0)
	return m.rebuild()
}

func (m Model) cycleTab(delta int) (Model, tea.Cmd) {
	tabs := m.state.Tabs()
	idx := 0
	for i, t := range tabs {
		if t == m.state.ActiveTab {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(tabs)) % len(tabs)
	cmd := m.SelectTab(tabs[idx])
	return m, cmd
}

func (m Model) open() (Model, tea.Cmd) {
	item, ok := m.list.SelectedItem().(NotificationItem)
	if !ok {
		return m, nil
	}

	next, navigate := m.state.Click(item.Notification, m.now())
	if !navigate {
		return m, nil
	}
	m.state = next
	rebuild := m.rebuild()

	n, settings := item.Notification, next.Settings
	return m, tea.Batch(rebuild, func() tea.Msg {
		return ClickedMsg{Notification: n, Settings: settings}
	})
}

// View renders the tab strip, any error banners and the list.
func (m Model) View() string {
	sections := []string{m.renderTabs()}

	if banner := m.renderErrors(); banner != "" {
		sections = append(sections, banner)
	}

	if len(m.list.Items()) == 0 {
		sections = append(sections, m.renderEmptyState())
	} else {
		sections = append(sections, m.list.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTabs() string {
	badges := m.state.Badges(m.now())
	var parts []string
	for _, t := range m.state.Tabs() {
		b := badges[t]
		label := fmt.Sprintf("%s (%d)", t.Label(), b.Total)
		style := theme.TabStyle
		if t == m.state.ActiveTab {
			style = theme.ActiveTabStyle
		}
		rendered := style.Render(label)
		if b.HasUnseen() {
			rendered += theme.NewDotStyle.Render(newDot)
		}
		parts = append(parts, rendered)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderErrors() string {
	errs := m.state.TabErrors()
	if len(errs) == 0 {
		return ""
	}

	lines := make([]string, 0, len(errs))
	for _, c := range model.Categories {
		if _, ok := errs[c]; !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("⚠ Could not load %s notifications", strings.ToLower(c.Label())))
	}
	return theme.ErrorBannerStyle.Render(strings.Join(lines, "\n"))
}

// renderEmptyState shows guidance text when the active tab has no rows.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(listHeight(m.height)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if !m.loaded {
		return style.Render("Loading notifications...")
	}
	return style.Render("No notifications.\n\nPress r to refresh.")
}

// SetSize updates the feed dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, listHeight(height))
}
