package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored documents",
	Run:   runList,
}

func runList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	recs, err := c.Service().List(ctx)
	if err != nil {
		exitError("list failed: %v", err)
	}

	if len(recs) == 0 {
		fmt.Println("No documents stored")
		return
	}

	yellow := color.New(color.FgYellow)
	for _, rec := range recs {
		yellow.Printf("%s", shortID(rec.ID))
		fmt.Printf("  %-40s  %10d bytes  %s\n",
			rec.Filename, rec.ByteLength, rec.UploadedAt.Format("2006-01-02"))
	}
	fmt.Printf("%d document(s)\n", len(recs))
}
