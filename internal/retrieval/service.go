// Package retrieval reconstructs stored documents from their chunks,
// verifies their integrity, and exposes lookup by id, title, and
// organization. Retrieval is read-only and safe for concurrent readers.
package retrieval

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yitwn/paperstore/internal/catalog"
	"github.com/yitwn/paperstore/internal/chunkstore"
	"github.com/yitwn/paperstore/internal/models"
)

// ErrIntegrity is returned when a document's reconstructed content hash
// disagrees with the hash recorded at ingest. The mismatched bytes are
// never returned to the caller.
var ErrIntegrity = errors.New("content hash mismatch")

// Service reconstructs and verifies stored documents.
type Service struct {
	store   chunkstore.ChunkStore
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// New creates a retrieval service.
func New(store chunkstore.ChunkStore, cat *catalog.Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, catalog: cat, logger: logger}
}

// Record returns the catalog entry for a document.
func (s *Service) Record(ctx context.Context, id string) (*models.DocumentRecord, error) {
	return s.catalog.Get(ctx, id)
}

// GetByID reconstructs a document's content from its chunks in index
// order and verifies it against the recorded hash and length before
// returning. On any mismatch no bytes are returned.
func (s *Service) GetByID(ctx context.Context, id string) ([]byte, error) {
	rec, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	chunks, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, chunkstore.ErrNotFound) {
			return nil, fmt.Errorf("document %s: chunks missing: %w", id, chunkstore.ErrCorrupted)
		}
		return nil, err
	}
	if len(chunks) != rec.ChunkCount {
		return nil, fmt.Errorf("document %s: have %d chunks, expected %d: %w",
			id, len(chunks), rec.ChunkCount, chunkstore.ErrCorrupted)
	}

	var buf bytes.Buffer
	buf.Grow(int(rec.ByteLength))
	for _, c := range chunks {
		buf.Write(c)
	}
	content := buf.Bytes()

	if int64(len(content)) != rec.ByteLength {
		return nil, fmt.Errorf("document %s: reconstructed %d bytes, recorded %d: %w",
			id, len(content), rec.ByteLength, ErrIntegrity)
	}
	if computed := hashBytes(content); computed != rec.ContentHash {
		s.logger.Error("stored content failed hash verification",
			"id", id, "stored", rec.ContentHash, "computed", computed)
		return nil, fmt.Errorf("document %s: %w", id, ErrIntegrity)
	}

	return content, nil
}

// GetByTitle returns the catalog records matching a title query,
// exact matches first, substring matches as a fallback.
func (s *Service) GetByTitle(ctx context.Context, query string) ([]*models.DocumentRecord, error) {
	return s.catalog.FindByTitle(ctx, query)
}

// GetByOrganization returns the catalog records for an organization.
func (s *Service) GetByOrganization(ctx context.Context, name string) ([]*models.DocumentRecord, error) {
	return s.catalog.FindByOrganization(ctx, name)
}

// List returns all catalog records.
func (s *Service) List(ctx context.Context) ([]*models.DocumentRecord, error) {
	return s.catalog.List(ctx)
}

// Verification reports how a stored document compares to its recorded
// state and, optionally, to an external reference copy.
type Verification struct {
	HashMatch     bool
	SizeMatch     bool
	StoredHash    string
	ComputedHash  string
	StoredSize    int64
	ReferenceSize int64
}

// VerifyIntegrity recomputes a stored document's hash from its chunks and
// compares it to the recorded hash. When reference is non-nil the stored
// content is additionally compared against the reference bytes, so the
// caller does not have to trust internal state alone.
func (s *Service) VerifyIntegrity(ctx context.Context, id string, reference []byte) (*Verification, error) {
	rec, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	chunks, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	hasher := sha256.New()
	var size int64
	for _, c := range chunks {
		hasher.Write(c)
		size += int64(len(c))
	}
	computed := hex.EncodeToString(hasher.Sum(nil))

	v := &Verification{
		StoredHash:   rec.ContentHash,
		ComputedHash: computed,
		StoredSize:   rec.ByteLength,
		HashMatch:    computed == rec.ContentHash,
		SizeMatch:    size == rec.ByteLength,
	}
	if reference != nil {
		v.ReferenceSize = int64(len(reference))
		v.HashMatch = v.HashMatch && computed == hashBytes(reference)
		v.SizeMatch = v.SizeMatch && size == v.ReferenceSize
	}
	return v, nil
}

// Delete removes a document. Visibility goes first: the catalog entry and
// dedup entry are removed in one transaction, then the chunks are purged.
// A crash between the two steps leaves only orphaned chunks, which the
// sweep reclaims; readers never observe a record without its chunks being
// deliberately gone.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.catalog.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("purge chunks for %s: %w", id, err)
	}
	s.logger.Info("document deleted", "id", id)
	return nil
}

// Stats summarizes the archive contents.
func (s *Service) Stats(ctx context.Context) (*models.StorageStats, error) {
	return s.catalog.Stats(ctx)
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
