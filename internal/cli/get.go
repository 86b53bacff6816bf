package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Retrieve a document from the archive",
	Long: `Reconstruct a document from its chunks, verify its content hash,
and write it to the output directory under its original file name.`,
	Args: cobra.ExactArgs(1),
	Run:  runGet,
}

var getOutDir string

func init() {
	getCmd.Flags().StringVarP(&getOutDir, "out", "o", ".", "Output directory")
}

func runGet(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	svc := c.Service()
	id := args[0]

	rec, err := svc.Record(ctx, id)
	if err != nil {
		exitError("%v", err)
	}

	content, err := svc.GetByID(ctx, id)
	if err != nil {
		exitError("%v", err)
	}

	if err := os.MkdirAll(getOutDir, 0755); err != nil {
		exitError("create output directory: %v", err)
	}

	outPath := filepath.Join(getOutDir, rec.Filename)
	if err := os.WriteFile(outPath, content, 0644); err != nil {
		exitError("write output: %v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Retrieved %s\n", outPath)
	fmt.Printf("%d bytes, hash verified\n", len(content))
}
