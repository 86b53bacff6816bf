// Package models defines the core data structures used throughout paperstore
// including document records, publication metadata, and storage statistics.
package models

import "time"

// DefaultChunkSize is the storage chunk size in bytes (255 KiB).
const DefaultChunkSize = 255 * 1024

// Metadata describes the publication a stored document belongs to.
type Metadata struct {
	Title        string   `json:"title"`
	Authors      []string `json:"authors,omitempty"`
	Organization string   `json:"organization,omitempty"`
	Year         int      `json:"year,omitempty"`
	Journal      string   `json:"journal,omitempty"`
	DOI          string   `json:"doi,omitempty"`
}

// DocumentRecord is the catalog entry for a stored document.
// It is created together with the document's full chunk set and becomes
// visible atomically; only its Metadata may change afterwards, via merge
// on a dedup hit.
type DocumentRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"` // hex-encoded SHA-256 of the full content
	ByteLength  int64     `json:"byte_length"`
	ChunkCount  int       `json:"chunk_count"`
	ChunkSize   int       `json:"chunk_size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Metadata    Metadata  `json:"metadata"`
}

// StorageStats summarizes the archive contents.
type StorageStats struct {
	TotalDocuments int            `json:"total_documents"`
	TotalBytes     int64          `json:"total_bytes"`
	ByOrganization map[string]int `json:"by_organization"`
}

// MergeMetadata merges incoming metadata into existing metadata when a
// submitted document deduplicates against an already-stored one. The policy
// is deterministic: scalar fields are first-writer-wins (the incoming value
// is used only when the existing field is empty), and authors are the
// ordered union of both lists, existing authors first.
func MergeMetadata(existing, incoming Metadata) Metadata {
	merged := existing

	if merged.Title == "" {
		merged.Title = incoming.Title
	}
	if merged.Organization == "" {
		merged.Organization = incoming.Organization
	}
	if merged.Year == 0 {
		merged.Year = incoming.Year
	}
	if merged.Journal == "" {
		merged.Journal = incoming.Journal
	}
	if merged.DOI == "" {
		merged.DOI = incoming.DOI
	}

	seen := make(map[string]bool, len(merged.Authors))
	for _, a := range merged.Authors {
		seen[a] = true
	}
	for _, a := range incoming.Authors {
		if !seen[a] {
			merged.Authors = append(merged.Authors, a)
			seen[a] = true
		}
	}

	return merged
}

// ChunkCountFor returns the number of chunks a document of the given length
// occupies at the given chunk size.
func ChunkCountFor(byteLength int64, chunkSize int) int {
	if byteLength == 0 || chunkSize <= 0 {
		return 0
	}
	return int((byteLength + int64(chunkSize) - 1) / int64(chunkSize))
}
