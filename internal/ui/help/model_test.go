package help

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/classfeed/internal/keys"
)

func TestViewListsSectionsAndMarkers(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 40)
	out := m.View()

	for _, want := range []string{"Feed", "Course announcements", "General", "toggle sort order", "Markers"} {
		assert.Contains(t, out, want)
	}
}
