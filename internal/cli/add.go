package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spf13/cobra"

	"github.com/yitwn/paperstore/internal/ingest"
	"github.com/yitwn/paperstore/internal/models"
)

var addCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Add documents to the archive",
	Long: `Add one or more documents to the archive.

Content is deduplicated by SHA-256 hash: re-adding a file that is already
stored reuses the existing document and merges the given metadata into it.

Examples:
  paperstore add paper.pdf --title "Consensus Protocols" --org "MIT"
  paperstore add *.pdf --org "Cornell" --year 2023`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAdd,
}

var (
	addTitle    string
	addAuthors  []string
	addOrg      string
	addYear     int
	addJournal  string
	addDOI      string
	addValidate bool
)

func init() {
	addCmd.Flags().StringVar(&addTitle, "title", "", "Publication title (defaults to the file name)")
	addCmd.Flags().StringArrayVar(&addAuthors, "author", nil, "Author name (repeatable, order preserved)")
	addCmd.Flags().StringVar(&addOrg, "org", "", "Organization the publication belongs to")
	addCmd.Flags().IntVar(&addYear, "year", 0, "Publication year")
	addCmd.Flags().StringVar(&addJournal, "journal", "", "Journal name")
	addCmd.Flags().StringVar(&addDOI, "doi", "", "DOI")
	addCmd.Flags().BoolVar(&addValidate, "validate", false, "Validate PDF structure before ingesting")
}

func runAdd(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	pipeline := c.Pipeline()
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	stored := 0
	failed := 0
	for _, path := range args {
		id, err := addFile(ctx, pipeline, path)
		if err != nil {
			red.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		green.Printf("%s -> %s\n", filepath.Base(path), shortID(id))
		stored++
	}

	fmt.Printf("Added %d document(s)", stored)
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	fmt.Println()
	if failed > 0 {
		os.Exit(1)
	}
}

// addFile ingests a single file with the metadata given on the command line.
func addFile(ctx context.Context, pipeline *ingest.Pipeline, path string) (string, error) {
	filename := filepath.Base(path)
	contentType := detectContentType(filename)

	if addValidate && contentType == "application/pdf" {
		if err := api.ValidateFile(path, nil); err != nil {
			return "", fmt.Errorf("not a valid PDF: %w", err)
		}
		if pages, err := api.PageCountFile(path); err == nil {
			fmt.Printf("%s: valid PDF, %d page(s)\n", filename, pages)
		}
	}

	title := addTitle
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	meta := models.Metadata{
		Title:        title,
		Authors:      addAuthors,
		Organization: addOrg,
		Year:         addYear,
		Journal:      addJournal,
		DOI:          addDOI,
	}

	return pipeline.Submit(ctx, f, filename, contentType, meta)
}

// detectContentType maps a file name to a MIME type.
func detectContentType(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
