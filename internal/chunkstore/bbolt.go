package chunkstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketChunks = []byte("chunks")

// BboltStore implements ChunkStore using a single embedded bbolt database.
// Chunks are keyed by "docID/NNNNNN" so that a document's chunks are
// adjacent under a cursor scan. bbolt fsyncs on commit, so a successful
// Put is durable.
type BboltStore struct {
	db *bolt.DB
}

// NewBboltStore opens or creates a bbolt chunk database at the given path.
func NewBboltStore(dbPath string) (*BboltStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create chunk directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open chunk database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketChunks)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create chunks bucket: %w", err)
	}

	return &BboltStore{db: db}, nil
}

// Close releases the bbolt database.
func (s *BboltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put durably writes one chunk.
func (s *BboltStore) Put(_ context.Context, docID string, index int, payload []byte) error {
	if !validDocID.MatchString(docID) {
		return fmt.Errorf("invalid document id: %q", docID)
	}
	if index < 0 {
		return fmt.Errorf("invalid chunk index: %d", index)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChunks).Put(chunkKey(docID, index), payload)
	})
}

// Get reads all chunks for a document in index order.
func (s *BboltStore) Get(_ context.Context, docID string) ([][]byte, error) {
	var chunks [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketChunks).Cursor()
		prefix := []byte(docID + "/")

		next := 0
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			idx, err := strconv.Atoi(string(k[len(prefix):]))
			if err != nil {
				return fmt.Errorf("document %s: malformed chunk key %q: %w", docID, k, ErrCorrupted)
			}
			if idx != next {
				return fmt.Errorf("document %s: expected chunk %d, found %d: %w", docID, next, idx, ErrCorrupted)
			}
			chunk := make([]byte, len(v))
			copy(chunk, v)
			chunks = append(chunks, chunk)
			next++
		}
		if next == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Count returns the number of stored chunks for a document.
func (s *BboltStore) Count(_ context.Context, docID string) (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketChunks).Cursor()
		prefix := []byte(docID + "/")
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Delete removes all chunks for a document. No error if none exist.
func (s *BboltStore) Delete(_ context.Context, docID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		c := b.Cursor()
		prefix := []byte(docID + "/")

		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete chunk %s: %w", k, err)
			}
		}
		return nil
	})
}

// ListDocs returns the ids of all documents with at least one chunk.
func (s *BboltStore) ListDocs(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketChunks).Cursor()
		last := ""
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			id, _, ok := strings.Cut(string(k), "/")
			if !ok {
				continue
			}
			if id != last {
				ids = append(ids, id)
				last = id
			}
		}
		return nil
	})
	return ids, err
}

// chunkKey builds the bucket key for a chunk.
func chunkKey(docID string, index int) []byte {
	return []byte(fmt.Sprintf("%s/%06d", docID, index))
}
