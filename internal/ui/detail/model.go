package detail

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classfeed/internal/keys"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/theme"
	"github.com/nhle/classfeed/internal/timefmt"
)

// BackMsg signals the parent to navigate back to the previous view.
type BackMsg struct{}

// OpenCourseMsg asks the parent to show every announcement of a course.
type OpenCourseMsg struct {
	CourseID   string
	CourseName string
}

// Model is the notification detail view component.
type Model struct {
	item     *model.Notification
	viewport viewport.Model
	keys     *keys.KeyMap
	now      func() time.Time
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		now:      time.Now,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.Select):
			if m.item != nil && m.item.Category == model.CategoryCourse && m.item.CourseID != "" {
				id, name := m.item.CourseID, m.item.CourseName
				return m, func() tea.Msg {
					return OpenCourseMsg{CourseID: id, CourseName: name}
				}
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.item == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No notification selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.item == nil {
		return ""
	}

	n := m.item
	now := m.now()
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	title := n.Title
	if title == "" {
		title = "(untitled)"
	}
	sections = append(sections, titleStyle.Render(title))
	sections = append(sections, theme.CategoryStyle(n.Category).Render(strings.ToUpper(n.Category.Label())))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) {
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render(fmt.Sprintf("%-10s", label+":")),
			valStyle.Render(value),
		))
	}

	if n.CourseName != "" {
		row("Course", n.CourseName)
	} else if n.CourseID != "" {
		row("Course", n.CourseID)
	}
	if n.Undated {
		row("Posted", "date unknown")
	} else {
		row("Posted", fmt.Sprintf("%s (%s)",
			timefmt.Absolute(n.CreatedAt.In(now.Location())),
			timefmt.RelativeAge(n.CreatedAt, now),
		))
	}

	if len(n.SourceRef) > 0 {
		refKeys := make([]string, 0, len(n.SourceRef))
		for k := range n.SourceRef {
			refKeys = append(refKeys, k)
		}
		sort.Strings(refKeys)
		for _, k := range refKeys {
			row(strings.ReplaceAll(k, "_", " "), n.SourceRef[k])
		}
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	sections = append(sections, "", separator, "")

	body := n.Message
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message")
	}
	sections = append(sections, body)

	if n.Category == model.CategoryCourse && n.CourseID != "" {
		sections = append(sections, "", theme.HelpStyle.Render("enter: all announcements for this course"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetNotification updates the notification being displayed.
func (m *Model) SetNotification(n model.Notification) {
	m.item = &n
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.viewport.SetContent(m.renderContent())
}
