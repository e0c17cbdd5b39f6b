// Package seen persists per-role notification settings and provides the
// pure transitions applied to them (marking items seen, resetting, and
// changing preferences).
package seen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nhle/classfeed/internal/logging"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/store"
)

// Key returns the storage key holding settings for role.
func Key(role model.Role) string {
	return string(role) + "_notification_settings"
}

// wireSettings is the persisted JSON form. Pointers distinguish missing
// fields from zero values.
type wireSettings struct {
	PersistDays    *int             `json:"persistDays,omitempty"`
	ShowTimeLabels *bool            `json:"showTimeLabels,omitempty"`
	SeenMap        map[string]int64 `json:"seenMap,omitempty"`
}

// Store loads and saves NotificationSettings for one role.
type Store struct {
	kv   store.Store
	role model.Role
	log  *logging.Logger

	mu      sync.Mutex
	next    uint64
	written uint64
}

// NewStore creates a settings store for role on top of kv.
func NewStore(kv store.Store, role model.Role, log *logging.Logger) *Store {
	return &Store{kv: kv, role: role, log: log}
}

// Role returns the role whose settings this store manages.
func (s *Store) Role() model.Role {
	return s.role
}

// Load reads the persisted settings. It never fails: a missing key yields
// defaults, and unreadable or corrupt data yields defaults plus a warning.
func (s *Store) Load(ctx context.Context) model.NotificationSettings {
	ctx = s.log.WithRole(ctx, string(s.role))

	raw, err := s.kv.Get(ctx, Key(s.role))
	if errors.Is(err, store.ErrNotFound) {
		return model.DefaultNotificationSettings()
	}
	if err != nil {
		s.log.Warn(ctx, "reading notification settings, using defaults", err)
		return model.DefaultNotificationSettings()
	}

	settings, err := Decode(raw)
	if err != nil {
		s.log.Warn(ctx, "corrupt notification settings, using defaults", err)
		return model.DefaultNotificationSettings()
	}
	return settings
}

// Save writes the complete settings object.
func (s *Store) Save(ctx context.Context, settings model.NotificationSettings) error {
	return s.SaveVersion(ctx, s.NextVersion(), settings)
}

// NextVersion reserves a write version. Reserve it when the settings
// value is produced, then hand it to SaveVersion.
func (s *Store) NextVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

// SaveVersion writes settings unless a newer version has already been
// written. Writes are serialized.
func (s *Store) SaveVersion(ctx context.Context, version uint64, settings model.NotificationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version <= s.written {
		s.log.Debug(s.log.WithRole(ctx, string(s.role)),
			fmt.Sprintf("skipping superseded settings write %d", version))
		return nil
	}
	data, err := Encode(settings)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, Key(s.role), data); err != nil {
		return fmt.Errorf("saving %s notification settings: %w", s.role, err)
	}
	s.written = version
	return nil
}

// Decode parses the persisted JSON form. Missing fields take their
// defaults and an invalid persistDays becomes PersistDaysDisabled.
func Decode(raw string) (model.NotificationSettings, error) {
	var w wireSettings
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return model.NotificationSettings{}, fmt.Errorf("decoding notification settings: %w", err)
	}

	settings := model.DefaultNotificationSettings()
	if w.PersistDays != nil && validPersistDays(*w.PersistDays) {
		settings.PersistDays = *w.PersistDays
	}
	if w.ShowTimeLabels != nil {
		settings.ShowTimeLabels = *w.ShowTimeLabels
	}
	for id, ts := range w.SeenMap {
		settings.SeenMap[id] = ts
	}
	return settings, nil
}

// Encode renders settings in the persisted JSON form.
func Encode(settings model.NotificationSettings) (string, error) {
	days := settings.PersistDays
	if !validPersistDays(days) {
		days = model.PersistDaysDisabled
	}
	seenMap := settings.SeenMap
	if seenMap == nil {
		seenMap = map[string]int64{}
	}

	data, err := json.Marshal(struct {
		PersistDays    int              `json:"persistDays"`
		ShowTimeLabels bool             `json:"showTimeLabels"`
		SeenMap        map[string]int64 `json:"seenMap"`
	}{days, settings.ShowTimeLabels, seenMap})
	if err != nil {
		return "", fmt.Errorf("encoding notification settings: %w", err)
	}
	return string(data), nil
}

func validPersistDays(days int) bool {
	return days == model.PersistDaysDisabled || days > 0
}

// MarkSeen records that id was opened at now. The stored timestamp never
// decreases, so repeated calls are idempotent.
func MarkSeen(settings model.NotificationSettings, id string, now time.Time) model.NotificationSettings {
	next := settings.Clone()
	ts := now.UnixMilli()
	if existing, ok := next.SeenMap[id]; !ok || ts > existing {
		next.SeenMap[id] = ts
	}
	return next
}

// ResetAll forgets every seen timestamp, making all in-window items new
// again. Preferences are kept.
func ResetAll(settings model.NotificationSettings) model.NotificationSettings {
	next := settings.Clone()
	next.SeenMap = map[string]int64{}
	return next
}

// SetPersistDays changes the retention window. Values other than -1 or a
// positive day count are rejected.
func SetPersistDays(settings model.NotificationSettings, days int) (model.NotificationSettings, error) {
	if !validPersistDays(days) {
		return settings, fmt.Errorf("invalid persist days %d: want -1 or a positive number", days)
	}
	next := settings.Clone()
	next.PersistDays = days
	return next, nil
}

// SetShowTimeLabels switches between relative and absolute timestamps.
func SetShowTimeLabels(settings model.NotificationSettings, show bool) model.NotificationSettings {
	next := settings.Clone()
	next.ShowTimeLabels = show
	return next
}
