package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yitwn/paperstore/internal/retrieval"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reclaim orphaned chunks",
	Long: `Delete chunk sets that no catalog entry references. Orphans can be
left behind by a crash during deletion or an interrupted ingest.`,
	Run: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	result, err := retrieval.Sweep(ctx, c.Catalog, c.Chunks, c.Logger)
	if err != nil {
		exitError("sweep failed: %v", err)
	}

	fmt.Printf("Scanned %d document(s), reclaimed %d orphan(s)\n",
		result.DocsScanned, result.OrphansDeleted)
}
