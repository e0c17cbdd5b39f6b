package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestContentHeight(t *testing.T) {
	assert.Equal(t, 22, NewLayout(80, 24).ContentHeight())
	assert.Equal(t, 0, NewLayout(80, 1).ContentHeight())
}

func TestHeaderSpansWidth(t *testing.T) {
	l := NewLayout(60, 20)
	header := l.RenderHeader("classfeed", "updated 10:42")

	assert.Contains(t, header, "classfeed")
	assert.Contains(t, header, "updated 10:42")
	assert.Equal(t, 60, lipgloss.Width(header))
}

func TestNarrowHeaderDoesNotWrap(t *testing.T) {
	l := NewLayout(20, 10)
	header := l.RenderHeader("classfeed [3 new]", "⚠ unavailable: global, course")

	assert.Equal(t, 1, lipgloss.Height(header))
}
