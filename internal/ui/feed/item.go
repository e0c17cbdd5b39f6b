package feed

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/theme"
)

const newDot = "●"

// NotificationItem wraps a notification so it can be used in a bubbles/list.
// New and TimeLabel are resolved when the list is rebuilt.
type NotificationItem struct {
	Notification model.Notification
	New          bool
	TimeLabel    string
}

// FilterValue returns the string used for fuzzy filtering.
func (i NotificationItem) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i NotificationItem) Title() string { return displayTitle(i.Notification) }

// Description returns a short summary line for the list.
func (i NotificationItem) Description() string {
	parts := []string{i.Notification.Category.Label()}
	if i.Notification.CourseName != "" {
		parts = append(parts, i.Notification.CourseName)
	}
	parts = append(parts, i.TimeLabel)
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for feed rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single feed row.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(NotificationItem)
	if !ok {
		return
	}
	fmt.Fprint(w, renderRow(it, index == m.Index()))
}

func renderRow(it NotificationItem, selected bool) string {
	n := it.Notification

	dot := " "
	if it.New {
		dot = theme.NewDotStyle.Render(newDot)
	}

	category := theme.CategoryStyle(n.Category).Render(shortCategory(n.Category))

	course := ""
	if n.CourseName != "" {
		course = theme.TimeLabelStyle.Render(" · " + n.CourseName)
	}

	line := fmt.Sprintf("%s %s %s%s  %s",
		dot, category, displayTitle(n), course,
		theme.TimeLabelStyle.Render(it.TimeLabel),
	)

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func displayTitle(n model.Notification) string {
	if n.Title != "" {
		return n.Title
	}
	if n.Message != "" {
		first, _, _ := strings.Cut(n.Message, "\n")
		return first
	}
	return "(untitled)"
}

func shortCategory(c model.Category) string {
	switch c {
	case model.CategoryGlobal:
		return "GLB"
	case model.CategoryCourse:
		return "CRS"
	case model.CategoryModule:
		return "MOD"
	case model.CategoryAssessment:
		return "ASM"
	default:
		return strings.ToUpper(string(c))
	}
}
