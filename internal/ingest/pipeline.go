// Package ingest orchestrates document submission: hashing, dedup checking,
// chunk writing, and catalog publication as one atomic unit. A document and
// its full chunk set become visible together — the catalog write is the
// publication barrier, and it happens only after every chunk is durable.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/yitwn/paperstore/internal/catalog"
	"github.com/yitwn/paperstore/internal/chunkstore"
	"github.com/yitwn/paperstore/internal/models"
)

// ErrValidation is returned for empty or unreadable input and malformed
// metadata. Validation failures are rejected immediately, never retried.
var ErrValidation = errors.New("invalid input")

// chunkQueueDepth bounds the number of chunks in flight between the
// spool reader and the chunk writer. The reader suspends when the store
// is slower than the source.
const chunkQueueDepth = 4

// Pipeline ingests documents into the archive.
type Pipeline struct {
	store     chunkstore.ChunkStore
	catalog   *catalog.Catalog
	chunkSize int
	spoolDir  string
	logger    *slog.Logger
}

// New creates an ingest pipeline. Chunks are written through the given
// store (wrap it in a RetryStore for transient-fault tolerance); spoolDir
// holds in-flight temp files and should live on the same filesystem as
// the archive.
func New(store chunkstore.ChunkStore, cat *catalog.Catalog, chunkSize int, spoolDir string, logger *slog.Logger) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = models.DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     store,
		catalog:   cat,
		chunkSize: chunkSize,
		spoolDir:  spoolDir,
		logger:    logger,
	}
}

// Submit ingests a document from r and returns its document id.
//
// The input is streamed exactly once: it is spooled to a temp file while
// the SHA-256 content hash is computed incrementally. If the hash is
// already registered, no new bytes are stored — the incoming metadata is
// merged into the existing record and the existing id is returned. This
// is the expected, silent outcome for previously-seen content, not an
// error. Any failure after hashing begins rolls back completely: no
// chunks, no catalog entry, no dedup entry.
func (p *Pipeline) Submit(ctx context.Context, r io.Reader, filename, contentType string, meta models.Metadata) (string, error) {
	if r == nil {
		return "", fmt.Errorf("nil byte source: %w", ErrValidation)
	}
	if meta.Title == "" {
		return "", fmt.Errorf("metadata title is required: %w", ErrValidation)
	}

	spool, size, contentHash, err := p.spoolAndHash(r)
	if err != nil {
		return "", err
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	if size == 0 {
		return "", fmt.Errorf("empty byte source: %w", ErrValidation)
	}

	// Dedup check before any chunk is written.
	if existing, err := p.catalog.Lookup(ctx, contentHash); err != nil {
		return "", err
	} else if existing != "" {
		p.logger.Info("duplicate content, reusing document",
			"id", existing, "hash", contentHash)
		if err := p.catalog.MergeMetadata(ctx, existing, meta); err != nil {
			return "", fmt.Errorf("merge metadata into %s: %w", existing, err)
		}
		return existing, nil
	}

	docID := uuid.New().String()

	chunkCount, err := p.writeChunks(ctx, docID, spool)
	if err != nil {
		p.rollback(docID)
		return "", err
	}
	if expected := models.ChunkCountFor(size, p.chunkSize); chunkCount != expected {
		p.rollback(docID)
		return "", fmt.Errorf("wrote %d chunks for %d bytes, expected %d", chunkCount, size, expected)
	}

	rec := &models.DocumentRecord{
		ID:          docID,
		Filename:    filename,
		ContentHash: contentHash,
		ByteLength:  size,
		ChunkCount:  chunkCount,
		ChunkSize:   p.chunkSize,
		ContentType: contentType,
		UploadedAt:  time.Now().UTC(),
		Metadata:    meta,
	}

	accepted, winner, err := p.catalog.Publish(ctx, rec)
	if err != nil {
		p.rollback(docID)
		return "", fmt.Errorf("publish document: %w", err)
	}
	if !accepted {
		// A concurrent ingest of identical content won the publish race.
		// Discard this writer's chunks and defer to the winner.
		p.logger.Info("lost dedup race, reusing document",
			"id", winner, "hash", contentHash)
		p.rollback(docID)
		if err := p.catalog.MergeMetadata(ctx, winner, meta); err != nil {
			return "", fmt.Errorf("merge metadata into %s: %w", winner, err)
		}
		return winner, nil
	}

	p.logger.Info("document stored",
		"id", docID, "bytes", size, "chunks", chunkCount)
	return docID, nil
}

// spoolAndHash streams the input once into a temp file, computing the
// content hash incrementally. The whole document is never buffered in
// memory. The returned file is positioned at the start.
func (p *Pipeline) spoolAndHash(r io.Reader) (*os.File, int64, string, error) {
	spool, err := os.CreateTemp(p.spoolDir, ".ingest-*")
	if err != nil {
		return nil, 0, "", fmt.Errorf("create spool file: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(spool, hasher), r)
	if err != nil {
		spool.Close()
		os.Remove(spool.Name())
		return nil, 0, "", fmt.Errorf("unreadable byte source: %w", ErrValidation)
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		spool.Close()
		os.Remove(spool.Name())
		return nil, 0, "", fmt.Errorf("rewind spool: %w", err)
	}

	return spool, size, hex.EncodeToString(hasher.Sum(nil)), nil
}

type chunk struct {
	index   int
	payload []byte
}

// writeChunks splits the spooled bytes into sequential fixed-size chunks
// and persists them through a bounded producer/consumer channel. The final
// chunk may be shorter than the chunk size.
func (p *Pipeline) writeChunks(ctx context.Context, docID string, r io.Reader) (int, error) {
	chunks := make(chan chunk, chunkQueueDepth)
	done := make(chan error, 1)

	go func() {
		for c := range chunks {
			if err := p.store.Put(ctx, docID, c.index, c.payload); err != nil {
				done <- fmt.Errorf("write chunk %d: %w", c.index, err)
				// Drain so the producer never blocks on a dead consumer.
				for range chunks {
				}
				return
			}
		}
		done <- nil
	}()

	count := 0
	var readErr error
	for readErr == nil {
		buf := make([]byte, p.chunkSize)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			select {
			case chunks <- chunk{index: count, payload: buf[:n]}:
				count++
			case <-ctx.Done():
				readErr = ctx.Err()
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil && readErr == nil {
			readErr = fmt.Errorf("read spool: %w", err)
		}
	}
	close(chunks)

	writeErr := <-done
	if readErr != nil {
		return count, readErr
	}
	return count, writeErr
}

// rollback removes any chunks written for a failed or superseded attempt.
// Best-effort: leftover chunks are reclaimed by the orphan sweep.
func (p *Pipeline) rollback(docID string) {
	if err := p.store.Delete(context.Background(), docID); err != nil {
		p.logger.Warn("rollback: failed to delete chunks",
			"id", docID, "error", err)
	}
}
