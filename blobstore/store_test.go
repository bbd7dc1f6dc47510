package blobstore

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(t.TempDir()),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "runs/a/unit.tsv", []byte("payload")))

			rc, err := store.Open(ctx, "runs/a/unit.tsv")
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, "payload", string(data))
		})
	}
}

func TestStoreOverwrite(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "blob", []byte("v1")))
			require.NoError(t, store.Put(ctx, "blob", []byte("v2")))
			rc, err := store.Open(ctx, "blob")
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "v2", string(data))
		})
	}
}

func TestStoreOpenMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Open(context.Background(), "absent")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreList(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "runs/a/x.tsv", []byte("1")))
			require.NoError(t, store.Put(ctx, "runs/b/y.tsv", []byte("2")))
			require.NoError(t, store.Put(ctx, "other/z.tsv", []byte("3")))

			names, err := store.List(ctx, "runs/")
			require.NoError(t, err)
			assert.Equal(t, []string{"runs/a/x.tsv", "runs/b/y.tsv"}, names)
		})
	}
}

func TestLocalStorePutIsAtomic(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	require.NoError(t, store.Put(context.Background(), "deep/nested/blob", []byte("x")))
	assert.FileExists(t, filepath.Join(dir, "deep", "nested", "blob"))
	assert.NoFileExists(t, filepath.Join(dir, "deep", "nested", "blob.tmp"))
}
