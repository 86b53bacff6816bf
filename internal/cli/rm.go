package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a document from the archive",
	Long: `Remove a document. The catalog entry and dedup entry disappear
first, then the chunks are purged, so a reader never sees a catalog entry
pointing at missing chunks.`,
	Args: cobra.ExactArgs(1),
	Run:  runRm,
}

func runRm(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	if err := c.Service().Delete(ctx, args[0]); err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Removed %s\n", shortID(args[0]))
}
