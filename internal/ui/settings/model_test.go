package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/classfeed/internal/model"
)

func current() model.NotificationSettings {
	return model.NotificationSettings{
		PersistDays:    7,
		ShowTimeLabels: true,
		SeenMap:        map[string]int64{"course_1": 10},
	}
}

func TestApplyKeepsSeenMapByDefault(t *testing.T) {
	m := New(current(), 80, 24)
	m.values.persistDays = 14
	m.values.showTimeLabels = false

	next, err := m.Apply()
	require.NoError(t, err)
	assert.Equal(t, 14, next.PersistDays)
	assert.False(t, next.ShowTimeLabels)
	assert.Equal(t, map[string]int64{"course_1": 10}, next.SeenMap)
}

func TestApplyReset(t *testing.T) {
	m := New(current(), 80, 24)
	m.values.reset = true

	next, err := m.Apply()
	require.NoError(t, err)
	assert.Empty(t, next.SeenMap)
	assert.Equal(t, 7, next.PersistDays)
	assert.Len(t, current().SeenMap, 1)
}

func TestApplyRejectsInvalidDays(t *testing.T) {
	m := New(current(), 80, 24)
	m.values.persistDays = 0

	next, err := m.Apply()
	assert.Error(t, err)
	assert.Equal(t, current(), next)
}

func TestPersistDaysLabel(t *testing.T) {
	assert.Contains(t, persistDaysLabel(model.PersistDaysDisabled), "Off")
	assert.Equal(t, "1 day", persistDaysLabel(1))
	assert.Equal(t, "30 days", persistDaysLabel(30))
}
