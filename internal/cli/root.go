// Package cli implements the command-line interface for paperstore.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yitwn/paperstore/internal/catalog"
	"github.com/yitwn/paperstore/internal/chunkstore"
	"github.com/yitwn/paperstore/internal/config"
	"github.com/yitwn/paperstore/internal/ingest"
	"github.com/yitwn/paperstore/internal/retrieval"
)

// cmdContext holds common resources for CLI commands.
type cmdContext struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Chunks  chunkstore.ChunkStore
	Logger  *slog.Logger

	chunkCloser io.Closer
}

// Close releases resources held by cmdContext.
func (c *cmdContext) Close() {
	if c.chunkCloser != nil {
		c.chunkCloser.Close()
	}
	if c.Catalog != nil {
		c.Catalog.Close()
	}
}

// Pipeline builds the ingest pipeline for this context.
func (c *cmdContext) Pipeline() *ingest.Pipeline {
	return ingest.New(c.Chunks, c.Catalog, c.Config.ChunkSize, c.Config.SpoolPath(), c.Logger)
}

// Service builds the retrieval service for this context.
func (c *cmdContext) Service() *retrieval.Service {
	return retrieval.New(c.Chunks, c.Catalog, c.Logger)
}

// initContext opens the archive the working directory belongs to.
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	cat, err := catalog.New(cfg.CatalogPath())
	if err != nil {
		exitError("failed to open catalog: %v", err)
	}
	if err := cat.Initialize(); err != nil {
		cat.Close()
		exitError("failed to initialize catalog: %v", err)
	}

	var base chunkstore.ChunkStore
	var closer io.Closer
	switch cfg.Backend {
	case config.BackendBbolt:
		s, err := chunkstore.NewBboltStore(cfg.ChunksPath())
		if err != nil {
			cat.Close()
			exitError("failed to open chunk store: %v", err)
		}
		base, closer = s, s
	default:
		s, err := chunkstore.NewFSStore(cfg.ChunksPath())
		if err != nil {
			cat.Close()
			exitError("failed to open chunk store: %v", err)
		}
		base = s
	}

	retryCfg := &chunkstore.RetryConfig{
		MaxRetries:     cfg.RetryMax,
		InitialBackoff: time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.25,
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	return &cmdContext{
		Config:      cfg,
		Catalog:     cat,
		Chunks:      chunkstore.NewRetryStore(base, retryCfg),
		Logger:      logger,
		chunkCloser: closer,
	}
}

var rootCmd = &cobra.Command{
	Use:   "paperstore",
	Short: "Content-addressable publication archive",
	Long: `Paperstore is a content-addressable archive for publication PDFs.
Documents are deduplicated by content hash, stored as fixed-size chunks,
and integrity-verified on retrieval.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(statsCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
