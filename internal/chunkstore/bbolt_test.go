package chunkstore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBboltStore(t *testing.T) *BboltStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "chunks.db")
	s, err := NewBboltStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBboltStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestBboltStore(t)
	docID := uuid.New().String()

	chunks := [][]byte{
		bytes.Repeat([]byte("x"), 128),
		bytes.Repeat([]byte("y"), 128),
		[]byte("short tail"),
	}
	for i, c := range chunks {
		require.NoError(t, s.Put(ctx, docID, i, c))
	}

	got, err := s.Get(ctx, docID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range chunks {
		assert.Equal(t, chunks[i], got[i])
	}
}

func TestBboltStore_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestBboltStore(t)

	_, err := s.Get(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBboltStore_Get_GapIsCorruption(t *testing.T) {
	ctx := context.Background()
	s := newTestBboltStore(t)
	docID := uuid.New().String()

	require.NoError(t, s.Put(ctx, docID, 0, []byte("first")))
	require.NoError(t, s.Put(ctx, docID, 3, []byte("fourth")))

	_, err := s.Get(ctx, docID)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestBboltStore_DocsDoNotInterleave(t *testing.T) {
	ctx := context.Background()
	s := newTestBboltStore(t)

	docA := uuid.New().String()
	docB := uuid.New().String()
	require.NoError(t, s.Put(ctx, docA, 0, []byte("from a")))
	require.NoError(t, s.Put(ctx, docB, 0, []byte("from b")))
	require.NoError(t, s.Put(ctx, docA, 1, []byte("more a")))

	got, err := s.Get(ctx, docA)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("from a"), got[0])
	assert.Equal(t, []byte("more a"), got[1])
}

func TestBboltStore_Count(t *testing.T) {
	ctx := context.Background()
	s := newTestBboltStore(t)
	docID := uuid.New().String()

	count, err := s.Count(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, s.Put(ctx, docID, 0, []byte("a")))
	require.NoError(t, s.Put(ctx, docID, 1, []byte("b")))
	require.NoError(t, s.Put(ctx, docID, 2, []byte("c")))

	count, err = s.Count(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestBboltStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestBboltStore(t)
	docID := uuid.New().String()

	require.NoError(t, s.Put(ctx, docID, 0, []byte("data")))
	require.NoError(t, s.Delete(ctx, docID))

	_, err := s.Get(ctx, docID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Idempotent
	require.NoError(t, s.Delete(ctx, docID))
}

func TestBboltStore_ListDocs(t *testing.T) {
	ctx := context.Background()
	s := newTestBboltStore(t)

	ids, err := s.ListDocs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	docA := uuid.New().String()
	docB := uuid.New().String()
	require.NoError(t, s.Put(ctx, docA, 0, []byte("a")))
	require.NoError(t, s.Put(ctx, docA, 1, []byte("aa")))
	require.NoError(t, s.Put(ctx, docB, 0, []byte("b")))

	ids, err = s.ListDocs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{docA, docB}, ids)
}
