package model

import "fmt"

// Role identifies which user-facing feed the settings belong to.
// Learner and teacher keep independent settings.
type Role string

const (
	RoleLearner Role = "learner"
	RoleTeacher Role = "teacher"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleLearner || r == RoleTeacher
}

// ParseRole converts a raw string into a Role.
func ParseRole(value string) (Role, error) {
	r := Role(value)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid role %q", value)
	}
	return r, nil
}

// PersistDaysDisabled is the sentinel that turns off "new" indicators
// and retention filtering.
const PersistDaysDisabled = -1

// NotificationSettings is the only persisted entity of the feed. It is
// treated as a value: every change produces a new copy.
type NotificationSettings struct {
	// PersistDays is the retention window in days, or PersistDaysDisabled.
	PersistDays int

	// ShowTimeLabels toggles relative ("3 days ago") versus absolute
	// timestamps. Display only.
	ShowTimeLabels bool

	// SeenMap maps a notification ID to the epoch milliseconds at which
	// the user last opened it.
	SeenMap map[string]int64
}

// DefaultNotificationSettings returns the settings used on first run.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		PersistDays:    PersistDaysDisabled,
		ShowTimeLabels: true,
		SeenMap:        map[string]int64{},
	}
}

// IndicatorsEnabled reports whether the retention window is active.
func (s NotificationSettings) IndicatorsEnabled() bool {
	return s.PersistDays > 0
}

// Clone returns a deep copy so callers can derive new values without
// touching the original seen map.
func (s NotificationSettings) Clone() NotificationSettings {
	seen := make(map[string]int64, len(s.SeenMap))
	for id, ts := range s.SeenMap {
		seen[id] = ts
	}
	s.SeenMap = seen
	return s
}
