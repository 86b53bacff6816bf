package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yitwn/paperstore/internal/catalog"
	"github.com/yitwn/paperstore/internal/chunkstore"
)

// SweepResult contains the outcome of an orphan sweep run.
type SweepResult struct {
	DocsScanned    int
	OrphansDeleted int
}

// Sweep removes chunk sets whose document id has no catalog entry.
// Orphans arise from a crash between catalog removal and chunk purge
// during deletion, or from an interrupted ingest rollback.
func Sweep(ctx context.Context, cat *catalog.Catalog, store chunkstore.ChunkStore, logger *slog.Logger) (*SweepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	result := &SweepResult{}

	ids, err := store.ListDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chunk documents: %w", err)
	}
	result.DocsScanned = len(ids)

	for _, id := range ids {
		has, err := cat.Has(ctx, id)
		if err != nil {
			return result, fmt.Errorf("check catalog for %s: %w", id, err)
		}
		if has {
			continue
		}
		if err := store.Delete(ctx, id); err != nil {
			logger.Warn("sweep: failed to delete orphaned chunks", "id", id, "error", err)
			continue
		}
		result.OrphansDeleted++
	}

	logger.Info("sweep complete",
		"scanned", result.DocsScanned,
		"deleted", result.OrphansDeleted,
	)
	return result, nil
}
