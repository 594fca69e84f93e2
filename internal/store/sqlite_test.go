package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cashbattle-backend/internal/store"
)

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	backend, err := store.NewSQLiteBackend(path)
	require.NoError(t, err)

	_, err = backend.Load(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, backend.Save(ctx, "k", []byte("one")))
	require.NoError(t, backend.Save(ctx, "k", []byte("two")))

	data, err := backend.Load(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "two", string(data))

	require.NoError(t, backend.Delete(ctx, "k"))
	_, err = backend.Load(ctx, "k")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, backend.Close())
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	backend, err := store.NewSQLiteBackend(path)
	require.NoError(t, err)
	s := store.New(backend)
	require.NoError(t, s.Set(ctx, store.KeyGlobalChallenges, []string{"c1", "c2"}))
	require.NoError(t, s.Close())

	backend, err = store.NewSQLiteBackend(path)
	require.NoError(t, err)
	s = store.New(backend)
	defer s.Close()

	got, err := store.List[string](ctx, s, store.KeyGlobalChallenges)
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2"}, got)
}
