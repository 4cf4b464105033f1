package remote

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStores(t *testing.T) {
	redisStore, _ := newRedis(t)
	backends := map[string]Store{
		"redis":  redisStore,
		"sqlite": newSQLite(t),
	}

	for name, store := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, found, err := store.Get(ctx, "gizmo:conv:missing")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.Set(ctx, "gizmo:conv:b", `[]`))
			require.NoError(t, store.Set(ctx, "gizmo:conv:a", `{"id":"a"}`))
			require.NoError(t, store.Set(ctx, "gizmo:convmeta:a", `{"conversation_id":"c1"}`))
			require.NoError(t, store.Set(ctx, "other:x", "1"))

			val, found, err := store.Get(ctx, "gizmo:conv:a")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `{"id":"a"}`, val)

			require.NoError(t, store.Set(ctx, "gizmo:conv:a", `{"id":"a","title":"x"}`))
			val, _, err = store.Get(ctx, "gizmo:conv:a")
			require.NoError(t, err)
			assert.Equal(t, `{"id":"a","title":"x"}`, val)

			keys, err := store.Keys(ctx, DefaultKeyspace.HistoryScanPrefix())
			require.NoError(t, err)
			assert.Equal(t, []string{"gizmo:conv:a", "gizmo:conv:b"}, keys)
		})
	}
}

func TestRedisKeysEscapesGlob(t *testing.T) {
	store, mr := newRedis(t)
	require.NoError(t, mr.Set("weird*:1", "x"))
	require.NoError(t, mr.Set("weirdo:1", "y"))

	keys, err := store.Keys(context.Background(), "weird*:")
	require.NoError(t, err)
	assert.Equal(t, []string{"weird*:1"}, keys)
}

func TestRedisFailureIsAnError(t *testing.T) {
	store, mr := newRedis(t)
	mr.Close()

	_, _, err := store.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestKeyspace(t *testing.T) {
	k := DefaultKeyspace
	assert.Equal(t, "gizmo:conv:abc", k.History("abc"))
	assert.Equal(t, "gizmo:convmeta:abc", k.Meta("abc"))

	id, ok := k.IDFromHistoryKey("gizmo:conv:abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = k.IDFromHistoryKey("gizmo:convmeta:abc")
	assert.False(t, ok)
	_, ok = k.IDFromHistoryKey("gizmo:conv:")
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantNil bool
		wantErr bool
	}{
		{name: "none", opts: Options{Backend: BackendNone}, wantNil: true},
		{name: "empty", opts: Options{}, wantNil: true},
		{name: "sqlite", opts: Options{Backend: BackendSQLite, SQLitePath: ":memory:"}},
		{name: "redis", opts: Options{Backend: BackendRedis, RedisURL: "redis://localhost:6379/0"}},
		{name: "bad redis url", opts: Options{Backend: BackendRedis, RedisURL: "http://nope"}, wantErr: true},
		{name: "unknown", opts: Options{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, store)
				return
			}
			require.NotNil(t, store)
			assert.NoError(t, store.Close())
		})
	}
}

func TestExtractUpMigration(t *testing.T) {
	up := extractUpMigration(kvSchema)
	assert.Contains(t, up, "CREATE TABLE IF NOT EXISTS kv")
	assert.NotContains(t, up, "DROP TABLE")
}
