// Package badge derives the unread counts shown on feed tabs.
package badge

import (
	"time"

	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/retention"
)

// Badge summarizes one group of notifications.
type Badge struct {
	// Total is the number of items inside the retention window.
	Total int

	// Unseen is the subset of Total carrying a "new" indicator.
	Unseen int
}

// HasUnseen reports whether a badge should be shown.
func (c Badge) HasUnseen() bool {
	return c.Unseen > 0
}

// Add sums two counts.
func (c Badge) Add(o Badge) Badge {
	return Badge{Total: c.Total + o.Total, Unseen: c.Unseen + o.Unseen}
}

// Counts holds per-category counts and their sum.
type Counts struct {
	ByCategory map[model.Category]Badge
	All        Badge
}

// Count computes the badge for items under settings.
func Count(items []model.Notification, settings model.NotificationSettings, now time.Time) Badge {
	var c Badge
	for _, n := range items {
		if !retention.IsInWindow(n, settings.PersistDays, now) {
			continue
		}
		c.Total++
		if retention.IsNew(n, settings.SeenMap, settings.PersistDays, now) {
			c.Unseen++
		}
	}
	return c
}

// CountAll computes badges for every category present in byCategory.
func CountAll(
	byCategory map[model.Category][]model.Notification,
	settings model.NotificationSettings,
	now time.Time,
) Counts {
	out := Counts{ByCategory: make(map[model.Category]Badge, len(byCategory))}
	for c, items := range byCategory {
		cnt := Count(items, settings, now)
		out.ByCategory[c] = cnt
		out.All = out.All.Add(cnt)
	}
	return out
}
