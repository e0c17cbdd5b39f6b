// Package normalize turns raw source records of any category into
// model.Notification values. It never rejects an item: missing fields are
// filled with safe defaults.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/source"
)

// Context carries what the normalizer needs beyond the raw record.
type Context struct {
	// Index is the item's position in its parent list, used to synthesize
	// an id when the source omitted one.
	Index int

	// Parent scopes synthesized ids for nested fetches (the course id for
	// announcements and modules, the module id for assessments).
	Parent string

	// CourseID and CourseName describe the enclosing course when known.
	CourseID   string
	CourseName string

	// Courses resolves a course name from a raw course_id.
	Courses map[string]string

	// Now is the normalization time, used for undated items.
	Now time.Time
}

// CompositeID builds the category-qualified notification id.
func CompositeID(category model.Category, rawID string) string {
	return string(category) + "_" + rawID
}

// CourseIndex maps course ids to display names.
func CourseIndex(courses []source.Course) map[string]string {
	idx := make(map[string]string, len(courses))
	for _, c := range courses {
		if id := c.ID.String(); id != "" {
			idx[id] = c.Name
		}
	}
	return idx
}

// Normalize maps a raw record onto a Notification.
func Normalize(raw source.RawItem, category model.Category, ctx Context) model.Notification {
	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}

	rawID := raw.ID.String()
	if rawID == "" {
		rawID = syntheticID(category, ctx)
	}

	n := model.Notification{
		ID:       CompositeID(category, rawID),
		Category: category,
		RawID:    rawID,
		Title:    firstNonEmpty(raw.Title, raw.Name, raw.Subject),
		Message:  firstNonEmpty(raw.Message, raw.Content, raw.Body, raw.Description),
	}

	n.CreatedAt, n.Undated = now, true
	for _, candidate := range raw.Timestamps() {
		if t, ok := ParseTimestamp(candidate.String()); ok {
			n.CreatedAt, n.Undated = t, false
			break
		}
	}

	n.CourseID = firstNonEmpty(raw.CourseID.String(), ctx.CourseID)
	n.CourseName = raw.CourseName
	if n.CourseName == "" && n.CourseID != "" {
		n.CourseName = ctx.Courses[n.CourseID]
	}
	// The enclosing course name only applies to items of that course.
	if n.CourseName == "" && n.CourseID == ctx.CourseID {
		n.CourseName = ctx.CourseName
	}

	return n
}

// Module normalizes a published module.
func Module(raw source.RawModule, ctx Context) model.Notification {
	n := Normalize(raw.RawItem, model.CategoryModule, ctx)
	if n.CourseID != "" {
		n.SourceRef = map[string]string{"course_id": n.CourseID}
	}
	return n
}

// Assessment normalizes a published assessment. The module id and due date
// are kept opaque in SourceRef.
func Assessment(raw source.RawAssessment, ctx Context) model.Notification {
	n := Normalize(raw.RawItem, model.CategoryAssessment, ctx)

	ref := map[string]string{}
	if id := firstNonEmpty(raw.ModuleID.String(), ctx.Parent); id != "" {
		ref["module_id"] = id
	}
	if due := raw.DueDate.String(); due != "" {
		ref["due_date"] = due
	}
	if len(ref) > 0 {
		n.SourceRef = ref
	}
	return n
}

// syntheticID builds "<category>_idx<index>", prefixed by the parent so two
// parents' unnamed children never collide.
func syntheticID(category model.Category, ctx Context) string {
	id := fmt.Sprintf("%s_idx%d", category, ctx.Index)
	if ctx.Parent != "" {
		id = ctx.Parent + "_" + id
	}
	return id
}

// timeLayouts are tried in order by ParseTimestamp.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats seen across backends,
// including epoch seconds and milliseconds. Values without a zone are
// read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		if epoch <= 0 {
			return time.Time{}, false
		}
		// Anything past year 33658 in seconds is taken as milliseconds.
		if epoch >= 1e12 {
			return time.UnixMilli(epoch).UTC(), true
		}
		return time.Unix(epoch, 0).UTC(), true
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
