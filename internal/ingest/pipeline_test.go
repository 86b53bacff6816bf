package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitwn/paperstore/internal/catalog"
	"github.com/yitwn/paperstore/internal/chunkstore"
	"github.com/yitwn/paperstore/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	pipeline *Pipeline
	catalog  *catalog.Catalog
	store    chunkstore.ChunkStore
}

func newTestEnv(t *testing.T, chunkSize int) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cat, err := catalog.New(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	require.NoError(t, cat.Initialize())
	t.Cleanup(func() { cat.Close() })

	store, err := chunkstore.NewFSStore(filepath.Join(dir, "chunks"))
	require.NoError(t, err)

	return &testEnv{
		pipeline: New(store, cat, chunkSize, dir, quietLogger()),
		catalog:  cat,
		store:    store,
	}
}

func testMeta() models.Metadata {
	return models.Metadata{
		Title:        "Sharded Storage for Publication Archives",
		Authors:      []string{"A. Author"},
		Organization: "Cornell",
		Year:         2023,
	}
}

func randomBytes(n int) []byte {
	data := make([]byte, n)
	rng := rand.New(rand.NewSource(42))
	rng.Read(data)
	return data
}

func TestSubmit_ChunkLayout(t *testing.T) {
	// 1,000,000 bytes at the default 255 KiB chunk size must produce
	// chunks of [261120, 261120, 261120, 216640].
	ctx := context.Background()
	env := newTestEnv(t, models.DefaultChunkSize)
	content := randomBytes(1_000_000)

	id, err := env.pipeline.Submit(ctx, bytes.NewReader(content), "big.pdf", "application/pdf", testMeta())
	require.NoError(t, err)

	rec, err := env.catalog.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), rec.ByteLength)
	assert.Equal(t, 4, rec.ChunkCount)
	assert.Equal(t, models.DefaultChunkSize, rec.ChunkSize)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.ContentHash)

	chunks, err := env.store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, 261120, len(chunks[0]))
	assert.Equal(t, 261120, len(chunks[1]))
	assert.Equal(t, 261120, len(chunks[2]))
	assert.Equal(t, 216640, len(chunks[3]))

	assert.Equal(t, content, bytes.Join(chunks, nil))
}

func TestSubmit_SingleShortChunk(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1024)

	id, err := env.pipeline.Submit(ctx, bytes.NewReader([]byte("tiny")), "tiny.pdf", "application/pdf", testMeta())
	require.NoError(t, err)

	rec, err := env.catalog.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ChunkCount)
	assert.Equal(t, int64(4), rec.ByteLength)
}

func TestSubmit_ExactMultipleOfChunkSize(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 100)
	content := randomBytes(300)

	id, err := env.pipeline.Submit(ctx, bytes.NewReader(content), "even.pdf", "application/pdf", testMeta())
	require.NoError(t, err)

	rec, err := env.catalog.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.ChunkCount)

	chunks, err := env.store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Len(t, c, 100)
	}
}

func TestSubmit_DedupReturnsSameID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 64)
	content := randomBytes(1000)

	first, err := env.pipeline.Submit(ctx, bytes.NewReader(content), "a.pdf", "application/pdf", testMeta())
	require.NoError(t, err)

	second, err := env.pipeline.Submit(ctx, bytes.NewReader(content), "b.pdf", "application/pdf", testMeta())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Exactly one physical copy.
	ids, err := env.store.ListDocs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first}, ids)

	stats, err := env.catalog.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
}

func TestSubmit_DedupMergesMetadata(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 64)
	content := randomBytes(200)

	meta1 := models.Metadata{Title: "First Title", Authors: []string{"A. Author"}}
	id, err := env.pipeline.Submit(ctx, bytes.NewReader(content), "a.pdf", "application/pdf", meta1)
	require.NoError(t, err)

	meta2 := models.Metadata{
		Title:        "Second Title",
		Authors:      []string{"B. Author"},
		Organization: "MIT",
		Year:         2020,
	}
	_, err = env.pipeline.Submit(ctx, bytes.NewReader(content), "b.pdf", "application/pdf", meta2)
	require.NoError(t, err)

	rec, err := env.catalog.Get(ctx, id)
	require.NoError(t, err)
	// Scalars are first-writer-wins, authors are the ordered union,
	// empty fields are filled in.
	assert.Equal(t, "First Title", rec.Metadata.Title)
	assert.Equal(t, []string{"A. Author", "B. Author"}, rec.Metadata.Authors)
	assert.Equal(t, "MIT", rec.Metadata.Organization)
	assert.Equal(t, 2020, rec.Metadata.Year)
}

func TestSubmit_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 64)

	_, err := env.pipeline.Submit(ctx, nil, "a.pdf", "application/pdf", testMeta())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.pipeline.Submit(ctx, bytes.NewReader(nil), "a.pdf", "application/pdf", testMeta())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.pipeline.Submit(ctx, bytes.NewReader([]byte("data")), "a.pdf", "application/pdf", models.Metadata{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSubmit_UnreadableSource(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 64)

	r := io.MultiReader(bytes.NewReader([]byte("partial")), &failingReader{})
	_, err := env.pipeline.Submit(ctx, r, "a.pdf", "application/pdf", testMeta())
	assert.ErrorIs(t, err, ErrValidation)

	stats, err := env.catalog.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalDocuments)
}

type failingReader struct{}

func (*failingReader) Read([]byte) (int, error) {
	return 0, errors.New("stream broke")
}

// brokenStore fails Put after a fixed number of successful writes.
type brokenStore struct {
	chunkstore.ChunkStore
	mu        sync.Mutex
	successes int
}

func (b *brokenStore) Put(ctx context.Context, docID string, index int, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.successes <= 0 {
		return chunkstore.ErrCorrupted // non-transient, surfaces immediately
	}
	b.successes--
	return b.ChunkStore.Put(ctx, docID, index, payload)
}

func TestSubmit_RollbackOnChunkWriteFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10)
	broken := &brokenStore{ChunkStore: env.store, successes: 2}
	pipeline := New(broken, env.catalog, 10, t.TempDir(), quietLogger())

	_, err := pipeline.Submit(ctx, bytes.NewReader(randomBytes(100)), "a.pdf", "application/pdf", testMeta())
	require.Error(t, err)

	// All-or-nothing: no chunks, no catalog entry, no dedup entry.
	ids, err := env.store.ListDocs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	stats, err := env.catalog.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalDocuments)

	// The same content can be ingested once the store recovers.
	id, err := env.pipeline.Submit(ctx, bytes.NewReader(randomBytes(100)), "a.pdf", "application/pdf", testMeta())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestSubmit_CancellationRollsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	env := newTestEnv(t, 10)
	cancelling := &cancellingStore{ChunkStore: env.store, cancel: cancel}
	pipeline := New(cancelling, env.catalog, 10, t.TempDir(), quietLogger())

	_, err := pipeline.Submit(ctx, bytes.NewReader(randomBytes(200)), "a.pdf", "application/pdf", testMeta())
	require.Error(t, err)

	ids, err := env.store.ListDocs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	stats, err := env.catalog.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalDocuments)
}

// cancellingStore cancels the submission while the first chunk is in flight.
type cancellingStore struct {
	chunkstore.ChunkStore
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancellingStore) Put(ctx context.Context, docID string, index int, payload []byte) error {
	c.once.Do(c.cancel)
	return ctx.Err()
}

func TestSubmit_ConcurrentIdenticalContent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1024)
	content := randomBytes(10_000)

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = env.pipeline.Submit(ctx, bytes.NewReader(content), "same.pdf", "application/pdf", testMeta())
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	// Exactly one chunk set survives.
	docs, err := env.store.ListDocs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0]}, docs)

	stats, err := env.catalog.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
}

func TestSubmit_DistinctContentDistinctIDs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 64)

	a, err := env.pipeline.Submit(ctx, bytes.NewReader([]byte("content a")), "a.pdf", "application/pdf", testMeta())
	require.NoError(t, err)
	b, err := env.pipeline.Submit(ctx, bytes.NewReader([]byte("content b")), "b.pdf", "application/pdf", testMeta())
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	stats, err := env.catalog.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocuments)
}
