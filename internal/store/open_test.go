package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/classfeed/internal/store"
)

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	mem, err := store.Open(ctx, store.BackendMemory, "", "")
	require.NoError(t, err)
	require.NoError(t, mem.Set(ctx, "k", "v"))
	assert.NoError(t, mem.Close())

	db, err := store.Open(ctx, "", filepath.Join(t.TempDir(), "feed.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, isSQLite := db.(*store.SQLiteStore)
	assert.True(t, isSQLite)

	_, err = store.Open(ctx, store.BackendRedis, "", "")
	assert.ErrorContains(t, err, "redis url is required")

	_, err = store.Open(ctx, "etcd", "", "")
	assert.ErrorContains(t, err, `unknown storage backend "etcd"`)
}
