package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yitwn/paperstore/internal/models"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search documents by title or organization",
	Long: `Search the catalog by publication title. Exact title matches are
listed first; if none exist, substring matches are shown.

With --org, the query is matched against organizations instead.

Examples:
  paperstore search "consensus"
  paperstore search --org "Cornell"`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

var searchByOrg bool

func init() {
	searchCmd.Flags().BoolVar(&searchByOrg, "org", false, "Search by organization instead of title")
}

func runSearch(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	svc := c.Service()

	var recs []*models.DocumentRecord
	var err error
	if searchByOrg {
		recs, err = svc.GetByOrganization(ctx, args[0])
	} else {
		recs, err = svc.GetByTitle(ctx, args[0])
	}
	if err != nil {
		exitError("search failed: %v", err)
	}

	if len(recs) == 0 {
		fmt.Println("No documents found")
		return
	}

	printRecords(recs)
}

// printRecords renders a record list in the shared list format.
func printRecords(recs []*models.DocumentRecord) {
	yellow := color.New(color.FgYellow)
	for _, rec := range recs {
		yellow.Printf("%s", shortID(rec.ID))
		fmt.Printf("  %s", rec.Metadata.Title)
		if rec.Metadata.Organization != "" {
			fmt.Printf("  [%s]", rec.Metadata.Organization)
		}
		if rec.Metadata.Year != 0 {
			fmt.Printf("  (%d)", rec.Metadata.Year)
		}
		fmt.Println()
	}
	fmt.Printf("%d document(s)\n", len(recs))
}
