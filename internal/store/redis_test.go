package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCmdable struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStoreNamespacesKeys(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	s := &RedisStore{store: mock}

	require.NoError(t, s.Set(ctx, "teacher_notification_settings", "{}"))
	assert.Equal(t, "{}", mock.data["classfeed:teacher_notification_settings"])
	assert.Equal(t, time.Duration(0), mock.ttls["classfeed:teacher_notification_settings"])

	got, err := s.Get(ctx, "teacher_notification_settings")
	require.NoError(t, err)
	assert.Equal(t, "{}", got)
}

func TestRedisStoreMissingKey(t *testing.T) {
	s := &RedisStore{store: newMockCmdable()}

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreWrapsErrors(t *testing.T) {
	boom := errors.New("connection reset")
	mock := newMockCmdable()
	mock.getErr = boom
	s := &RedisStore{store: mock}

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "classfeed", buildKey())
	assert.Equal(t, "classfeed:a:b", buildKey("a", " ", "b"))
}

func TestNewRedisStoreRequiresURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "")
	require.Error(t, err)

	_, err = NewRedisStore(context.Background(), "not a url")
	require.Error(t, err)
}
