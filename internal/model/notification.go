package model

import (
	"fmt"
	"time"
)

// Category identifies the backend origin of a notification.
type Category string

const (
	CategoryGlobal     Category = "global"
	CategoryCourse     Category = "course"
	CategoryModule     Category = "module"
	CategoryAssessment Category = "assessment"
)

// Categories lists every category in canonical display order.
var Categories = []Category{
	CategoryGlobal,
	CategoryCourse,
	CategoryModule,
	CategoryAssessment,
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	for _, candidate := range Categories {
		if candidate == c {
			return true
		}
	}
	return false
}

// Label returns the human-readable category name.
func (c Category) Label() string {
	switch c {
	case CategoryGlobal:
		return "Global"
	case CategoryCourse:
		return "Course"
	case CategoryModule:
		return "Module"
	case CategoryAssessment:
		return "Assessment"
	default:
		return string(c)
	}
}

// ParseCategory converts a raw string into a Category.
func ParseCategory(value string) (Category, error) {
	for _, candidate := range Categories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification category %q", value)
}

// Notification is the normalized representation of an item from any
// category. It is rebuilt on every aggregation pass and never mutated.
type Notification struct {
	// ID is the category-qualified identity, e.g. "module_42".
	ID string `json:"id"`

	// Category identifies which source produced this notification.
	Category Category `json:"category"`

	// RawID is the identifier as reported by the source (or synthesized
	// when the source omitted it).
	RawID string `json:"raw_id"`

	Title   string `json:"title"`
	Message string `json:"message"`

	// CreatedAt is the first populated creation timestamp of the raw item.
	// When none could be parsed it holds the normalization time and
	// Undated is set.
	CreatedAt time.Time `json:"created_at"`

	// Undated marks items whose age is unknown. They are never excluded
	// by the retention window.
	Undated bool `json:"undated,omitempty"`

	CourseID   string `json:"course_id,omitempty"`
	CourseName string `json:"course_name,omitempty"`

	// SourceRef carries category-specific payload (e.g. an assessment's
	// due date). The engine does not interpret it.
	SourceRef map[string]string `json:"source_ref,omitempty"`
}

// Clickable reports whether the item navigates to a detail view.
// Module and assessment rows are informational only.
func (n Notification) Clickable() bool {
	switch n.Category {
	case CategoryGlobal, CategoryCourse:
		return true
	default:
		return false
	}
}

// CreatedAtMillis returns CreatedAt as epoch milliseconds, the unit used
// by the persisted seen map.
func (n Notification) CreatedAtMillis() int64 {
	return n.CreatedAt.UnixMilli()
}
