// Package timefmt renders notification timestamps as relative ages or
// absolute dates.
package timefmt

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/nhle/classfeed/internal/model"
)

const day = 24 * time.Hour

// RelativeAge renders the age of createdAt at now in coarsening buckets.
// Timestamps in the future render as "just now".
func RelativeAge(createdAt, now time.Time) string {
	age := now.Sub(createdAt)
	days := age.Hours() / 24

	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return ago(int(age/time.Minute), "minute")
	case age < day:
		return ago(int(age/time.Hour), "hour")
	case days < 7.5:
		// Half-day rounding: 1.4 days is "1 day", 1.6 days is "2 days".
		return ago(int(math.Round(days)), "day")
	case days < 14:
		return ago(int(days), "day")
	case days < 30:
		return ago(int(days/7), "week")
	case days < 365:
		return ago(int(days/30), "month")
	default:
		return ago(int(days/365), "year")
	}
}

func ago(n int, unit string) string {
	return english.Plural(n, unit, "") + " ago"
}

// Absolute renders t as e.g. "Mar 1st 2024, 09:30" in t's location.
func Absolute(t time.Time) string {
	return fmt.Sprintf("%s %s %d, %s",
		t.Format("Jan"), humanize.Ordinal(t.Day()), t.Year(), t.Format("15:04"))
}

// Label picks the timestamp text shown next to a notification.
func Label(n model.Notification, now time.Time, showTimeLabels bool) string {
	if showTimeLabels {
		return RelativeAge(n.CreatedAt, now)
	}
	if n.Undated {
		return "date unknown"
	}
	return Absolute(n.CreatedAt.In(now.Location()))
}
