// Package feedview selects, filters and orders notifications for the
// tabbed feed, and applies the seen-marking that follows an item click.
// State is a value; every transition returns a new State.
package feedview

import (
	"sort"
	"time"

	"github.com/nhle/classfeed/internal/aggregate"
	"github.com/nhle/classfeed/internal/badge"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/retention"
	"github.com/nhle/classfeed/internal/seen"
)

// Tab is a feed filter shown as a tab.
type Tab string

const (
	TabAll     Tab = "all"
	TabGlobal  Tab = "global"
	TabCourse  Tab = "course"
	TabContent Tab = "content"
)

// Label returns the tab title.
func (t Tab) Label() string {
	switch t {
	case TabAll:
		return "All"
	case TabGlobal:
		return "Global"
	case TabCourse:
		return "Course"
	case TabContent:
		return "Content"
	default:
		return string(t)
	}
}

// Categories returns the notification categories shown under t.
func (t Tab) Categories() []model.Category {
	switch t {
	case TabAll:
		return model.Categories
	case TabGlobal:
		return []model.Category{model.CategoryGlobal}
	case TabCourse:
		return []model.Category{model.CategoryCourse}
	case TabContent:
		return []model.Category{model.CategoryModule, model.CategoryAssessment}
	default:
		return nil
	}
}

// TabsFor returns the tabs available to role, in display order.
func TabsFor(role model.Role) []Tab {
	if role == model.RoleTeacher {
		return []Tab{TabAll, TabGlobal, TabCourse}
	}
	return []Tab{TabAll, TabGlobal, TabCourse, TabContent}
}

// SortOrder is the chronological direction of a list.
type SortOrder int

const (
	Descending SortOrder = iota
	Ascending
)

// Toggle flips the order.
func (o SortOrder) Toggle() SortOrder {
	if o == Descending {
		return Ascending
	}
	return Descending
}

func (o SortOrder) String() string {
	if o == Ascending {
		return "oldest first"
	}
	return "newest first"
}

// Sort returns a sorted copy of items. Ties on CreatedAt are broken by ID
// so the result never depends on fetch completion order.
func Sort(items []model.Notification, order SortOrder) []model.Notification {
	out := make([]model.Notification, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if order == Ascending {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if order == Ascending {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
	return out
}

// State is everything needed to render the tabbed feed.
type State struct {
	Role      model.Role
	ActiveTab Tab
	Feed      aggregate.Result
	Settings  model.NotificationSettings
}

// New returns the initial state for role with the All tab active.
func New(role model.Role, settings model.NotificationSettings) State {
	return State{Role: role, ActiveTab: TabAll, Settings: settings}
}

// Tabs returns the tabs available in this state.
func (s State) Tabs() []Tab {
	return TabsFor(s.Role)
}

// SelectTab activates tab. Tabs unavailable to the role are ignored.
func (s State) SelectTab(tab Tab) State {
	for _, t := range s.Tabs() {
		if t == tab {
			s.ActiveTab = tab
			return s
		}
	}
	return s
}

// WithFeed replaces the aggregated feed.
func (s State) WithFeed(feed aggregate.Result) State {
	s.Feed = feed
	return s
}

// WithSettings replaces the notification settings.
func (s State) WithSettings(settings model.NotificationSettings) State {
	s.Settings = settings
	return s
}

func (s State) itemsFor(tab Tab) []model.Notification {
	var items []model.Notification
	for _, c := range tab.Categories() {
		items = append(items, s.Feed.ByCategory[c]...)
	}
	return items
}

// Items returns the active tab's in-window items, newest first.
func (s State) Items(now time.Time) []model.Notification {
	items := retention.Filter(s.itemsFor(s.ActiveTab), s.Settings.PersistDays, now)
	return Sort(items, Descending)
}

// IsNew reports whether n carries a "new" indicator under the current
// settings.
func (s State) IsNew(n model.Notification, now time.Time) bool {
	return retention.IsNew(n, s.Settings.SeenMap, s.Settings.PersistDays, now)
}

// Badges returns the (total, unseen) pair for every available tab.
func (s State) Badges(now time.Time) map[Tab]badge.Badge {
	out := make(map[Tab]badge.Badge, len(s.Tabs()))
	for _, t := range s.Tabs() {
		out[t] = badge.Count(s.itemsFor(t), s.Settings, now)
	}
	return out
}

// TabErrors returns the category errors relevant to the active tab.
func (s State) TabErrors() map[model.Category]error {
	out := map[model.Category]error{}
	for _, c := range s.ActiveTab.Categories() {
		if err := s.Feed.Err(c); err != nil {
			out[c] = err
		}
	}
	return out
}

// Click handles a user opening n. Clickable items are marked seen at now
// and the caller should navigate to the detail view; informational rows
// leave the state unchanged.
func (s State) Click(n model.Notification, now time.Time) (State, bool) {
	if !n.Clickable() {
		return s, false
	}
	s.Settings = seen.MarkSeen(s.Settings, n.ID, now)
	return s, true
}

// CourseScreen is the per-course announcement list with a sort toggle.
type CourseScreen struct {
	CourseID   string
	CourseName string
	Order      SortOrder
}

// NewCourseScreen opens the screen for a course, newest first.
func NewCourseScreen(courseID, courseName string) CourseScreen {
	return CourseScreen{CourseID: courseID, CourseName: courseName, Order: Descending}
}

// ToggleSort flips the sort order.
func (c CourseScreen) ToggleSort() CourseScreen {
	c.Order = c.Order.Toggle()
	return c
}

// Items returns the course's in-window announcements in the screen's order.
func (c CourseScreen) Items(s State, now time.Time) []model.Notification {
	var items []model.Notification
	for _, n := range s.Feed.ByCategory[model.CategoryCourse] {
		if n.CourseID == c.CourseID {
			items = append(items, n)
		}
	}
	return Sort(retention.Filter(items, s.Settings.PersistDays, now), c.Order)
}
