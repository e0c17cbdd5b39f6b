package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classfeed/internal/theme"
)

// Layout splits the terminal into a one-line header, the active view and
// a one-line status bar.
type Layout struct {
	Width  int
	Height int
}

const chromeLines = 2

// NewLayout returns a Layout for a terminal of the given size.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentWidth is the width handed to sub-views.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight is the height left between header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-chromeLines, 0)
}

// RenderHeader puts title on the left and status on the right. The
// status is cut short rather than wrapped when the terminal is narrow.
func (l Layout) RenderHeader(title, status string) string {
	left := theme.HeaderStyle.Render(title)
	room := max(l.Width-lipgloss.Width(left), 0)
	right := theme.HeaderStyle.MaxWidth(room).Render(status)
	return bar(theme.HeaderStyle, l.Width, left, right)
}

// RenderStatusBar renders key hints or a status message.
func (l Layout) RenderStatusBar(text string) string {
	line := theme.StatusBarStyle.MaxWidth(max(l.Width, 1)).Render(text)
	return bar(theme.StatusBarStyle, l.Width, line, "")
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// bar joins left and right with a filler in style's background so the
// line spans width cells.
func bar(style lipgloss.Style, width int, left, right string) string {
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}
