// Package catalog provides SQLite-based persistence for document metadata
// and the content-hash dedup index. Catalog and dedup writes for the same
// document are applied in a single transaction, so a document row never
// exists without its dedup entry or vice versa.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yitwn/paperstore/internal/models"
)

// ErrNotFound is returned when no document matches the given id.
var ErrNotFound = errors.New("document not found")

// Catalog represents the SQLite metadata store.
type Catalog struct {
	db *sql.DB
}

// New creates a new catalog connection.
func New(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Initialize creates the database schema.
func (c *Catalog) Initialize() error {
	schema := `
	-- Document records (one per distinct content hash)
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		byte_length INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		chunk_size INTEGER NOT NULL,
		content_type TEXT,
		uploaded_at TEXT NOT NULL,
		title TEXT NOT NULL,
		authors JSON,
		organization TEXT,
		year INTEGER,
		journal TEXT,
		doi TEXT
	);

	-- Dedup index (content hash -> owning document)
	CREATE TABLE IF NOT EXISTS dedup_index (
		content_hash TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id)
	);

	-- Config and bookkeeping
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	-- Secondary lookup indexes
	CREATE INDEX IF NOT EXISTS idx_documents_title ON documents(lower(title));
	CREATE INDEX IF NOT EXISTS idx_documents_org ON documents(organization);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Publish atomically registers a document: it inserts the dedup entry and
// the document row in one transaction. If another writer already registered
// the same content hash, nothing is written and the winner's id is returned
// with accepted=false. This is the compare-and-set that prevents duplicate
// physical storage under concurrent ingest.
func (c *Catalog) Publish(ctx context.Context, rec *models.DocumentRecord) (accepted bool, existingID string, err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, "", fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO dedup_index (content_hash, document_id) VALUES (?, ?)
		 ON CONFLICT(content_hash) DO NOTHING`,
		rec.ContentHash, rec.ID,
	)
	if err != nil {
		return false, "", fmt.Errorf("insert dedup entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, "", err
	}
	if n == 0 {
		// Lost the race — report the registered owner.
		var winner string
		err := tx.QueryRowContext(ctx,
			"SELECT document_id FROM dedup_index WHERE content_hash = ?", rec.ContentHash,
		).Scan(&winner)
		if err != nil {
			return false, "", fmt.Errorf("lookup dedup winner: %w", err)
		}
		return false, winner, nil
	}

	authors, err := json.Marshal(rec.Metadata.Authors)
	if err != nil {
		return false, "", fmt.Errorf("marshal authors: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents
		 (id, filename, content_hash, byte_length, chunk_count, chunk_size,
		  content_type, uploaded_at, title, authors, organization, year, journal, doi)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.ContentHash, rec.ByteLength, rec.ChunkCount, rec.ChunkSize,
		rec.ContentType, rec.UploadedAt.UTC().Format(time.RFC3339Nano),
		rec.Metadata.Title, string(authors), rec.Metadata.Organization,
		rec.Metadata.Year, rec.Metadata.Journal, rec.Metadata.DOI,
	)
	if err != nil {
		return false, "", fmt.Errorf("insert document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, "", fmt.Errorf("commit publish: %w", err)
	}
	return true, "", nil
}

// Lookup returns the document id registered for a content hash, or the
// empty string if the hash is unknown.
func (c *Catalog) Lookup(ctx context.Context, contentHash string) (string, error) {
	var id string
	err := c.db.QueryRowContext(ctx,
		"SELECT document_id FROM dedup_index WHERE content_hash = ?", contentHash,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup hash: %w", err)
	}
	return id, nil
}

// Get retrieves a document record by id. Returns ErrNotFound if missing.
func (c *Catalog) Get(ctx context.Context, id string) (*models.DocumentRecord, error) {
	row := c.db.QueryRowContext(ctx, selectDocument+" WHERE id = ?", id)
	rec, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

// FindByTitle returns documents matching the query, case-insensitively.
// Exact title matches are tried first; if none exist, substring matches
// are returned as a fallback.
func (c *Catalog) FindByTitle(ctx context.Context, query string) ([]*models.DocumentRecord, error) {
	exact, err := c.queryDocuments(ctx,
		selectDocument+" WHERE lower(title) = lower(?) ORDER BY uploaded_at", query)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return exact, nil
	}
	return c.queryDocuments(ctx,
		selectDocument+" WHERE instr(lower(title), lower(?)) > 0 ORDER BY uploaded_at", query)
}

// FindByOrganization returns all documents recorded for an organization,
// case-insensitively.
func (c *Catalog) FindByOrganization(ctx context.Context, name string) ([]*models.DocumentRecord, error) {
	return c.queryDocuments(ctx,
		selectDocument+" WHERE lower(organization) = lower(?) ORDER BY uploaded_at", name)
}

// List returns all document records ordered by upload time.
func (c *Catalog) List(ctx context.Context) ([]*models.DocumentRecord, error) {
	return c.queryDocuments(ctx, selectDocument+" ORDER BY uploaded_at")
}

// MergeMetadata merges incoming metadata into a stored record using the
// deterministic policy in models.MergeMetadata. Used on dedup hits.
func (c *Catalog) MergeMetadata(ctx context.Context, id string, incoming models.Metadata) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectDocument+" WHERE id = ?", id)
	rec, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	merged := models.MergeMetadata(rec.Metadata, incoming)
	authors, err := json.Marshal(merged.Authors)
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents
		 SET title = ?, authors = ?, organization = ?, year = ?, journal = ?, doi = ?
		 WHERE id = ?`,
		merged.Title, string(authors), merged.Organization, merged.Year,
		merged.Journal, merged.DOI, id,
	)
	if err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return tx.Commit()
}

// Delete removes a document row and its dedup entry in one transaction.
// Returns ErrNotFound if the document does not exist.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM dedup_index WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("delete dedup entry: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// Has reports whether a document id exists in the catalog.
func (c *Catalog) Has(ctx context.Context, id string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		"SELECT 1 FROM documents WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Stats summarizes the catalog contents.
func (c *Catalog) Stats(ctx context.Context) (*models.StorageStats, error) {
	stats := &models.StorageStats{ByOrganization: make(map[string]int)}

	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(byte_length), 0) FROM documents",
	).Scan(&stats.TotalDocuments, &stats.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT COALESCE(organization, ''), COUNT(*)
		 FROM documents GROUP BY organization ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("count by organization: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var org string
		var count int
		if err := rows.Scan(&org, &count); err != nil {
			return nil, err
		}
		stats.ByOrganization[org] = count
	}
	return stats, rows.Err()
}

const selectDocument = `
	SELECT id, filename, content_hash, byte_length, chunk_count, chunk_size,
	       content_type, uploaded_at, title, authors, organization, year, journal, doi
	FROM documents`

// rowScanner abstracts sql.Row and sql.Rows for scanDocument.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a single document row.
func scanDocument(row rowScanner) (*models.DocumentRecord, error) {
	var rec models.DocumentRecord
	var uploadedAt, authorsJSON string
	var contentType, organization, journal, doi sql.NullString
	var year sql.NullInt64

	err := row.Scan(
		&rec.ID, &rec.Filename, &rec.ContentHash, &rec.ByteLength,
		&rec.ChunkCount, &rec.ChunkSize, &contentType, &uploadedAt,
		&rec.Metadata.Title, &authorsJSON, &organization, &year, &journal, &doi,
	)
	if err != nil {
		return nil, err
	}

	rec.ContentType = contentType.String
	rec.Metadata.Organization = organization.String
	rec.Metadata.Journal = journal.String
	rec.Metadata.DOI = doi.String
	rec.Metadata.Year = int(year.Int64)

	if authorsJSON != "" {
		if err := json.Unmarshal([]byte(authorsJSON), &rec.Metadata.Authors); err != nil {
			return nil, fmt.Errorf("unmarshal authors: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, uploadedAt); err == nil {
		rec.UploadedAt = t
	}
	return &rec, nil
}

// queryDocuments runs a document query and scans all rows.
func (c *Catalog) queryDocuments(ctx context.Context, query string, args ...any) ([]*models.DocumentRecord, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var recs []*models.DocumentRecord
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
