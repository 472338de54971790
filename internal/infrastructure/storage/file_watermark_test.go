package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LandScout/internal/domain"
)

func TestFileWatermarkStore_PersistsMaximum(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "watermarks.jsonl")

	store, err := NewFileWatermarkStore(path, nil)
	require.NoError(t, err)

	got, err := store.Get(ctx, "scope")
	require.NoError(t, err)
	assert.Zero(t, got)

	require.NoError(t, store.Set(ctx, "scope", 7))
	require.NoError(t, store.Set(ctx, "scope", 3))
	require.NoError(t, store.Set(ctx, "scope", 7))
	require.NoError(t, store.Set(ctx, "other", 2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)

	reopened, err := NewFileWatermarkStore(path, nil)
	require.NoError(t, err)

	got, err = reopened.Get(ctx, "scope")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemID(7), got)

	got, err = reopened.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemID(2), got)
}

func TestFileWatermarkStore_LoadKeepsLargest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "watermarks.jsonl")
	lines := `{"scope":"a","last_id":9}` + "\n" + `{"scope":"a","last_id":4}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))

	store, err := NewFileWatermarkStore(path, nil)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemID(9), got)
}

func TestFileWatermarkStore_TornTailRecovers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "watermarks.jsonl")
	lines := `{"scope":"a","last_id":41}` + "\n" + `{"scope":"a","last_`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))

	store, err := NewFileWatermarkStore(path, nil)
	require.NoError(t, err)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemID(41), got)

	require.NoError(t, store.Set(ctx, "b", 3))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"scope":"a","last_id":41}`+"\n"+`{"scope":"b","last_id":3}`+"\n", string(data))

	require.NoError(t, store.Set(ctx, "a", 42))

	reopened, err := NewFileWatermarkStore(path, nil)
	require.NoError(t, err)
	got, err = reopened.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemID(42), got)
	got, err = reopened.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemID(3), got)
}

func TestFileWatermarkStore_GarbageReadsAsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "watermarks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not json\n{}\n"), 0o600))

	store, err := NewFileWatermarkStore(path, nil)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Zero(t, got)
}
