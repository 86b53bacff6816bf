// Package chunkstore provides durable keyed storage of document chunks.
// A document's content is stored as a contiguous, zero-based sequence of
// fixed-size chunks addressed by (document id, chunk index).
package chunkstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document has no stored chunks.
var ErrNotFound = errors.New("no chunks for document")

// ErrCorrupted is returned when a document's chunk sequence has a gap,
// a duplicate index, or an otherwise unreadable entry. It indicates
// store-level damage and is never retried.
var ErrCorrupted = errors.New("chunk sequence corrupted")

// ChunkStore defines the contract for chunk persistence.
type ChunkStore interface {
	// Put durably writes one chunk. The chunk is persisted before Put
	// returns successfully.
	Put(ctx context.Context, docID string, index int, payload []byte) error

	// Get returns all chunks for a document strictly ordered by index.
	// Returns ErrNotFound if the document has no chunks and ErrCorrupted
	// if the stored indices do not form the contiguous range [0, n).
	Get(ctx context.Context, docID string) ([][]byte, error)

	// Count returns the number of stored chunks for a document.
	Count(ctx context.Context, docID string) (int, error)

	// Delete removes all chunks for a document. Idempotent — absent
	// chunks are not an error.
	Delete(ctx context.Context, docID string) error

	// ListDocs returns the ids of all documents with at least one chunk.
	ListDocs(ctx context.Context) ([]string, error)
}
