package chunkstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// validDocID matches a lowercase hex UUID as generated at ingest.
var validDocID = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// FSStore implements ChunkStore using the local filesystem.
// Chunks are stored as numbered files inside a per-document directory,
// sharded by the first two characters of the document id. Each chunk is
// written to a temp file, fsynced, and renamed into place so that a chunk
// file is either fully present or absent.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed chunk store rooted at the given directory.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create chunk root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Put writes one chunk durably.
func (s *FSStore) Put(_ context.Context, docID string, index int, payload []byte) error {
	if !validDocID.MatchString(docID) {
		return fmt.Errorf("invalid document id: %q", docID)
	}
	if index < 0 {
		return fmt.Errorf("invalid chunk index: %d", index)
	}

	dir := s.docDir(docID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create chunk dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".chunk-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(payload); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write chunk data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync chunk data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.chunkPath(docID, index)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename chunk: %w", err)
	}
	return nil
}

// Get reads all chunks for a document in index order.
func (s *FSStore) Get(_ context.Context, docID string) ([][]byte, error) {
	indices, err := s.chunkIndices(docID)
	if err != nil {
		return nil, err
	}

	chunks := make([][]byte, 0, len(indices))
	for i, idx := range indices {
		if idx != i {
			return nil, fmt.Errorf("document %s: expected chunk %d, found %d: %w", docID, i, idx, ErrCorrupted)
		}
		data, err := os.ReadFile(s.chunkPath(docID, idx))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("document %s: chunk %d vanished: %w", docID, idx, ErrCorrupted)
			}
			return nil, fmt.Errorf("read chunk %d of %s: %w", idx, docID, err)
		}
		chunks = append(chunks, data)
	}
	return chunks, nil
}

// Count returns the number of chunk files for a document.
func (s *FSStore) Count(_ context.Context, docID string) (int, error) {
	indices, err := s.chunkIndices(docID)
	if err != nil {
		if err == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return len(indices), nil
}

// Delete removes all chunks for a document. No error if none exist.
func (s *FSStore) Delete(_ context.Context, docID string) error {
	if !validDocID.MatchString(docID) {
		return nil
	}
	if err := os.RemoveAll(s.docDir(docID)); err != nil {
		return fmt.Errorf("remove chunks for %s: %w", docID, err)
	}
	return nil
}

// ListDocs returns all document ids with a chunk directory.
func (s *FSStore) ListDocs(_ context.Context) ([]string, error) {
	shards, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read chunk root: %w", err)
	}

	var ids []string
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		docs, err := os.ReadDir(filepath.Join(s.root, shard.Name()))
		if err != nil {
			return nil, fmt.Errorf("read shard %s: %w", shard.Name(), err)
		}
		for _, doc := range docs {
			if doc.IsDir() && validDocID.MatchString(doc.Name()) {
				ids = append(ids, doc.Name())
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// chunkIndices returns the sorted chunk indices present for a document.
func (s *FSStore) chunkIndices(docID string) ([]int, error) {
	if !validDocID.MatchString(docID) {
		return nil, ErrNotFound
	}
	entries, err := os.ReadDir(s.docDir(docID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read chunk dir for %s: %w", docID, err)
	}

	var indices []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || len(name) == 0 || name[0] == '.' {
			continue
		}
		idx, err := strconv.Atoi(name)
		if err != nil {
			return nil, fmt.Errorf("document %s: stray chunk file %q: %w", docID, name, ErrCorrupted)
		}
		indices = append(indices, idx)
	}
	if len(indices) == 0 {
		return nil, ErrNotFound
	}
	sort.Ints(indices)
	return indices, nil
}

// docDir returns the directory holding a document's chunks.
func (s *FSStore) docDir(docID string) string {
	return filepath.Join(s.root, docID[:2], docID)
}

// chunkPath returns the filesystem path for a single chunk.
func (s *FSStore) chunkPath(docID string, index int) string {
	return filepath.Join(s.docDir(docID), fmt.Sprintf("%06d", index))
}
