package timefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/classfeed/internal/model"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestRelativeAge(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want string
	}{
		{-time.Hour, "just now"},
		{0, "just now"},
		{59 * time.Second, "just now"},
		{90 * time.Second, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{time.Hour, "1 hour ago"},
		{23*time.Hour + 59*time.Minute, "23 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{day * 14 / 10, "1 day ago"},
		{day * 16 / 10, "2 days ago"},
		{day*7 + 11*time.Hour, "7 days ago"},
		{day*7 + 13*time.Hour, "7 days ago"},
		{13 * day, "13 days ago"},
		{14 * day, "2 weeks ago"},
		{29 * day, "4 weeks ago"},
		{30 * day, "1 month ago"},
		{364 * day, "12 months ago"},
		{365 * day, "1 year ago"},
		{800 * day, "2 years ago"},
	}

	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, RelativeAge(now.Add(-tc.age), now))
		})
	}
}

func TestAbsolute(t *testing.T) {
	assert.Equal(t, "Mar 1st 2024, 09:30", Absolute(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, "Nov 22nd 2023, 18:05", Absolute(time.Date(2023, 11, 22, 18, 5, 0, 0, time.UTC)))
}

func TestLabel(t *testing.T) {
	n := model.Notification{CreatedAt: now.Add(-3 * day)}
	assert.Equal(t, "3 days ago", Label(n, now, true))
	assert.Equal(t, "May 7th 2024, 12:00", Label(n, now, false))

	n.Undated = true
	assert.Equal(t, "date unknown", Label(n, now, false))
}
