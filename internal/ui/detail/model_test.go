package detail

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/classfeed/internal/keys"
	"github.com/nhle/classfeed/internal/model"
)

var now = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestModel() Model {
	m := New(keys.DefaultKeyMap(), 100, 40)
	m.now = func() time.Time { return now }
	return m
}

func TestDetailRendersNotification(t *testing.T) {
	m := newTestModel()
	m.SetNotification(model.Notification{
		ID:         "assessment_3",
		Category:   model.CategoryAssessment,
		Title:      "Essay 1",
		Message:    "Submit via the portal.",
		CreatedAt:  now.Add(-2 * time.Hour),
		CourseName: "History",
		SourceRef:  map[string]string{"due_date": "2024-03-10", "module_id": "m1"},
	})

	view := m.View()
	assert.Contains(t, view, "Essay 1")
	assert.Contains(t, view, "History")
	assert.Contains(t, view, "2 hours ago")
	assert.Contains(t, view, "due date")
	assert.Contains(t, view, "Submit via the portal.")
}

func TestDetailBack(t *testing.T) {
	m := newTestModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())
}

func TestDetailOpensCourseScreen(t *testing.T) {
	m := newTestModel()
	m.SetNotification(model.Notification{
		ID: "course_5", Category: model.CategoryCourse,
		CourseID: "c1", CourseName: "Algebra", CreatedAt: now,
	})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, OpenCourseMsg{CourseID: "c1", CourseName: "Algebra"}, cmd())

	m.SetNotification(model.Notification{ID: "global_1", Category: model.CategoryGlobal, CreatedAt: now})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}
