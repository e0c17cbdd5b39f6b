package seen

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/classfeed/internal/logging"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/store"
	"github.com/nhle/classfeed/tests/testutil"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (string, error) { return "", f.err }
func (f failingStore) Set(context.Context, string, string) error  { return f.err }

func TestLoadMissingReturnsDefaults(t *testing.T) {
	s := NewStore(store.NewMemoryStore(), model.RoleLearner, logging.Nop())

	got := s.Load(context.Background())
	assert.Equal(t, model.DefaultNotificationSettings(), got)
}

func TestLoadCorruptReturnsDefaultsAndWarns(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, Key(model.RoleLearner), "{not json"))

	buf := &bytes.Buffer{}
	s := NewStore(kv, model.RoleLearner, logging.New(logging.Options{Output: buf}))

	got := s.Load(ctx)
	assert.Equal(t, model.DefaultNotificationSettings(), got)
	assert.Contains(t, buf.String(), "corrupt notification settings")
	assert.Contains(t, buf.String(), `"role":"learner"`)
}

func TestLoadBackendErrorReturnsDefaults(t *testing.T) {
	s := NewStore(failingStore{err: errors.New("disk gone")}, model.RoleTeacher, nil)

	got := s.Load(context.Background())
	assert.Equal(t, model.DefaultNotificationSettings(), got)
}

func TestLoadPartialFieldsUseDefaults(t *testing.T) {
	settings, err := Decode(`{"persistDays":7}`)
	require.NoError(t, err)
	assert.Equal(t, 7, settings.PersistDays)
	assert.True(t, settings.ShowTimeLabels)
	assert.NotNil(t, settings.SeenMap)
	assert.Empty(t, settings.SeenMap)
}

func TestLoadInvalidPersistDaysDisables(t *testing.T) {
	for _, raw := range []string{`{"persistDays":0}`, `{"persistDays":-3}`} {
		settings, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, model.PersistDaysDisabled, settings.PersistDays, raw)
	}
}

func TestSaveLoadRoundTripPerRole(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	learner := NewStore(kv, model.RoleLearner, nil)
	teacher := NewStore(kv, model.RoleTeacher, nil)

	want := model.NotificationSettings{
		PersistDays:    7,
		ShowTimeLabels: false,
		SeenMap:        map[string]int64{"course_5": 1700000000000},
	}
	require.NoError(t, learner.Save(ctx, want))

	raw, err := kv.Get(ctx, "learner_notification_settings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"persistDays":7,"showTimeLabels":false,"seenMap":{"course_5":1700000000000}}`, raw)

	assert.Equal(t, want, learner.Load(ctx))
	assert.Equal(t, model.DefaultNotificationSettings(), teacher.Load(ctx))
}

func TestSaveWrapsBackendError(t *testing.T) {
	boom := errors.New("read-only")
	s := NewStore(failingStore{err: boom}, model.RoleLearner, nil)

	err := s.Save(context.Background(), model.DefaultNotificationSettings())
	assert.ErrorIs(t, err, boom)
}

func TestMarkSeenIsMonotonicAndPure(t *testing.T) {
	base := model.DefaultNotificationSettings()

	first := MarkSeen(base, "global_1", now)
	assert.Empty(t, base.SeenMap)
	assert.Equal(t, now.UnixMilli(), first.SeenMap["global_1"])

	again := MarkSeen(first, "global_1", now)
	assert.Equal(t, first, again)

	earlier := MarkSeen(first, "global_1", now.Add(-time.Hour))
	assert.Equal(t, now.UnixMilli(), earlier.SeenMap["global_1"])

	later := MarkSeen(first, "global_1", now.Add(time.Minute))
	assert.Equal(t, now.Add(time.Minute).UnixMilli(), later.SeenMap["global_1"])
}

func TestResetAllKeepsPreferences(t *testing.T) {
	s := model.NotificationSettings{PersistDays: 14, ShowTimeLabels: false, SeenMap: map[string]int64{"a": 1}}

	got := ResetAll(s)
	assert.Empty(t, got.SeenMap)
	assert.Equal(t, 14, got.PersistDays)
	assert.False(t, got.ShowTimeLabels)
	assert.Len(t, s.SeenMap, 1)
}

func TestSetters(t *testing.T) {
	s := model.DefaultNotificationSettings()

	next, err := SetPersistDays(s, 30)
	require.NoError(t, err)
	assert.Equal(t, 30, next.PersistDays)

	_, err = SetPersistDays(s, 0)
	assert.Error(t, err)

	assert.False(t, SetShowTimeLabels(s, false).ShowTimeLabels)
	assert.True(t, s.ShowTimeLabels)
}

func TestLoadFromSQLiteBackend(t *testing.T) {
	kv := testutil.NewTestStore(t)
	testutil.Seed(t, kv, map[string]string{
		Key(model.RoleTeacher): `{"persistDays":14,"showTimeLabels":false,"seenMap":{"course_9":1715342400000}}`,
	})

	got := NewStore(kv, model.RoleTeacher, nil).Load(context.Background())
	assert.Equal(t, 14, got.PersistDays)
	assert.False(t, got.ShowTimeLabels)
	assert.Equal(t, int64(1715342400000), got.SeenMap["course_9"])

	learner := NewStore(kv, model.RoleLearner, nil).Load(context.Background())
	assert.Equal(t, model.DefaultNotificationSettings(), learner)
}

func TestSaveVersionSkipsSupersededWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemoryStore(), model.RoleLearner, logging.Nop())

	older := MarkSeen(model.DefaultNotificationSettings(), "course_1", now)
	newer := ResetAll(older)

	v1 := s.NextVersion()
	v2 := s.NextVersion()
	require.NoError(t, s.SaveVersion(ctx, v2, newer))
	require.NoError(t, s.SaveVersion(ctx, v1, older))

	assert.Empty(t, s.Load(ctx).SeenMap)

	require.NoError(t, s.Save(ctx, older))
	assert.Contains(t, s.Load(ctx).SeenMap, "course_1")
}
