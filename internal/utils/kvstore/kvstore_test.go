package kvstore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T, quota int) map[string]Store {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"), quota)
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(quota),
		"sqlite": sqliteStore,
	}
}

func TestStore_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t, 0) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "k", "v1"))
			require.NoError(t, s.Set(ctx, "k", "v2"))

			v, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v2", v)

			require.NoError(t, s.Remove(ctx, "k"))
			_, ok, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_Quota(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t, 20) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "a", strings.Repeat("x", 9)))
			assert.ErrorIs(t, s.Set(ctx, "b", strings.Repeat("y", 10)), ErrQuotaExceeded)

			// Overwriting a key only counts its new size.
			require.NoError(t, s.Set(ctx, "a", strings.Repeat("x", 19)))
			assert.ErrorIs(t, s.Set(ctx, "a", strings.Repeat("x", 20)), ErrQuotaExceeded)

			v, _, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Len(t, v, 19)
		})
	}
}
