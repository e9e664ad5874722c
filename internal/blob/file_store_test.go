package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	payload := []byte("%PDF-1.7 quarterly network diagram")
	locator, err := store.Put(ctx, payload)
	require.NoError(t, err)
	assert.NotContains(t, locator, "/")

	got, err := store.Get(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, store.Delete(ctx, locator))
	_, err = store.Get(ctx, locator)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, locator), ErrNotFound)
}

func TestFileStoreLocatorsAreUnique(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	a, err := store.Put(ctx, []byte("same"))
	require.NoError(t, err)
	b, err := store.Put(ctx, []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFileStoreRejectsForeignLocators(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewFileStore(root, nil)
	require.NoError(t, err)

	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))
	t.Cleanup(func() { _ = os.Remove(outside) })

	for _, locator := range []string{"", "../secret.txt", "ab", "not-a-uuid-at-all"} {
		_, err := store.Get(ctx, locator)
		assert.ErrorIs(t, err, ErrNotFound, locator)
		assert.ErrorIs(t, store.Delete(ctx, locator), ErrNotFound, locator)
	}
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("hello")
	locator, err := store.Put(ctx, data)
	require.NoError(t, err)
	data[0] = 'j'

	got, err := store.Get(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, locator))
	assert.ErrorIs(t, store.Delete(ctx, locator), ErrNotFound)
}
