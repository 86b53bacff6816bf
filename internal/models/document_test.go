package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeMetadata_FirstWriterWinsScalars(t *testing.T) {
	existing := Metadata{Title: "Original", Year: 2020}
	incoming := Metadata{Title: "Replacement", Year: 2022, Journal: "Nature"}

	merged := MergeMetadata(existing, incoming)

	assert.Equal(t, "Original", merged.Title)
	assert.Equal(t, 2020, merged.Year)
	assert.Equal(t, "Nature", merged.Journal) // empty before, filled
}

func TestMergeMetadata_AuthorsOrderedUnion(t *testing.T) {
	existing := Metadata{Title: "T", Authors: []string{"A. Author", "B. Author"}}
	incoming := Metadata{Title: "T", Authors: []string{"B. Author", "C. Author"}}

	merged := MergeMetadata(existing, incoming)

	assert.Equal(t, []string{"A. Author", "B. Author", "C. Author"}, merged.Authors)
}

func TestMergeMetadata_Deterministic(t *testing.T) {
	existing := Metadata{Title: "T", Organization: "Cornell"}
	incoming := Metadata{Title: "U", Organization: "MIT", DOI: "10.1000/x"}

	first := MergeMetadata(existing, incoming)
	second := MergeMetadata(existing, incoming)

	assert.Equal(t, first, second)
}

func TestChunkCountFor(t *testing.T) {
	assert.Equal(t, 0, ChunkCountFor(0, DefaultChunkSize))
	assert.Equal(t, 1, ChunkCountFor(1, DefaultChunkSize))
	assert.Equal(t, 1, ChunkCountFor(DefaultChunkSize, DefaultChunkSize))
	assert.Equal(t, 2, ChunkCountFor(DefaultChunkSize+1, DefaultChunkSize))
	// 1,000,000 bytes at 255 KiB chunks.
	assert.Equal(t, 4, ChunkCountFor(1_000_000, DefaultChunkSize))
}
