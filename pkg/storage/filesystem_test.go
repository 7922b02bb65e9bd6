package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "receipts/fee-1.pdf", []byte("%PDF"), "application/pdf"))
	rc, err := store.Open(ctx, "receipts/fee-1.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF", string(body))

	require.NoError(t, store.Delete(ctx, "receipts/fee-1.pdf"))
	_, err = store.Open(ctx, "receipts/fee-1.pdf")
	assert.ErrorIs(t, err, ErrNotExist)
	assert.NoError(t, store.Delete(ctx, "receipts/fee-1.pdf"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, store.Save(context.Background(), "../../etc/passwd", []byte("x"), ""))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "old.csv", []byte("a"), ""))
	require.NoError(t, store.Save(ctx, "fresh.csv", []byte("b"), ""))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), past, past))

	deleted, err := store.CleanupOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, deleted)
	_, err = os.Stat(filepath.Join(dir, "fresh.csv"))
	assert.NoError(t, err)
}
