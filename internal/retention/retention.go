// Package retention decides which notifications fall inside the user's
// retention window and which of those count as new.
package retention

import (
	"time"

	"github.com/nhle/classfeed/internal/model"
)

const day = 24 * time.Hour

// IsInWindow reports whether n is visible under persistDays. A
// non-positive persistDays disables the window. Undated and future items
// are always in window.
func IsInWindow(n model.Notification, persistDays int, now time.Time) bool {
	if persistDays <= 0 || n.Undated {
		return true
	}
	age := now.Sub(n.CreatedAt)
	if age < 0 {
		return true
	}
	return age <= time.Duration(persistDays)*day
}

// IsNew reports whether n should carry a "new" indicator: indicators are
// enabled, n is in window, and it was created after the user last opened it.
func IsNew(n model.Notification, seenMap map[string]int64, persistDays int, now time.Time) bool {
	if persistDays <= 0 {
		return false
	}
	if !IsInWindow(n, persistDays, now) {
		return false
	}
	seenAt, ok := seenMap[n.ID]
	if !ok {
		return true
	}
	// Undated items are stamped with the pass time, so any open counts.
	if n.Undated {
		return false
	}
	return n.CreatedAtMillis() > seenAt
}

// Filter returns the in-window items, preserving order.
func Filter(items []model.Notification, persistDays int, now time.Time) []model.Notification {
	if persistDays <= 0 {
		return items
	}
	out := make([]model.Notification, 0, len(items))
	for _, n := range items {
		if IsInWindow(n, persistDays, now) {
			out = append(out, n)
		}
	}
	return out
}
