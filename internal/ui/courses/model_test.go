package courses

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/classfeed/internal/aggregate"
	"github.com/nhle/classfeed/internal/feedview"
	"github.com/nhle/classfeed/internal/keys"
	"github.com/nhle/classfeed/internal/model"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func state() feedview.State {
	return feedview.New(model.RoleLearner, model.DefaultNotificationSettings()).WithFeed(aggregate.Result{
		ByCategory: map[model.Category][]model.Notification{
			model.CategoryCourse: {
				{ID: "course_1", Category: model.CategoryCourse, CourseID: "c1", Title: "Welcome", CreatedAt: now.Add(-48 * time.Hour)},
				{ID: "course_2", Category: model.CategoryCourse, CourseID: "c2", Title: "Other", CreatedAt: now.Add(-time.Hour)},
				{ID: "course_3", Category: model.CategoryCourse, CourseID: "c1", Title: "Quiz moved", CreatedAt: now.Add(-time.Hour)},
			},
		},
	})
}

func titles(m Model) []string {
	var out []string
	for _, it := range m.list.Items() {
		out = append(out, it.(row).n.Title)
	}
	return out
}

func TestCourseScreenToggleSort(t *testing.T) {
	m := New(feedview.NewCourseScreen("c1", "Algebra"), state(), keys.DefaultKeyMap(), 80, 20)
	m.now = func() time.Time { return now }
	m.SetState(state())

	assert.Equal(t, []string{"Quiz moved", "Welcome"}, titles(m))
	assert.Contains(t, m.View(), "Algebra")
	assert.Contains(t, m.View(), "newest first")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	assert.Equal(t, feedview.Ascending, m.Screen().Order)
	assert.Equal(t, []string{"Welcome", "Quiz moved"}, titles(m))

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	assert.Equal(t, []string{"Quiz moved", "Welcome"}, titles(m))
}

func TestCourseScreenBack(t *testing.T) {
	m := New(feedview.NewCourseScreen("c9", ""), state(), keys.DefaultKeyMap(), 80, 20)
	assert.Contains(t, m.View(), "No announcements")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())
}
