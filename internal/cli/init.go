package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yitwn/paperstore/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new paperstore archive",
	Long: `Initialize a new paperstore archive in the current directory.
This creates a .paperstore directory holding the catalog and chunk store.`,
	Run: runInit,
}

var (
	initChunkSize int
	initBackend   string
)

func init() {
	initCmd.Flags().IntVar(&initChunkSize, "chunk-size", 0, "Chunk size in bytes (default 255 KiB)")
	initCmd.Flags().StringVar(&initBackend, "backend", config.BackendFS, "Chunk store backend (fs, bbolt)")
}

func runInit(cmd *cobra.Command, args []string) {
	// Check if already initialized
	if _, err := config.FindRoot(); err == nil {
		exitError("paperstore archive already exists")
	}

	cfg, err := config.Initialize(initChunkSize, initBackend)
	if err != nil {
		exitError("%v", err)
	}

	fmt.Printf("Initialized empty paperstore archive in %s\n", cfg.ArchivePath())
	fmt.Printf("Chunk size: %d bytes, backend: %s\n", cfg.ChunkSize, cfg.Backend)
}
