package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Verify the integrity of a stored document",
	Long: `Recompute a stored document's hash from its chunks and compare it
to the hash recorded at ingest. With --against, the stored content is also
compared to an external reference file.`,
	Args: cobra.ExactArgs(1),
	Run:  runVerify,
}

var verifyAgainst string

func init() {
	verifyCmd.Flags().StringVar(&verifyAgainst, "against", "", "Reference file to compare against")
}

func runVerify(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	var reference []byte
	if verifyAgainst != "" {
		data, err := os.ReadFile(verifyAgainst)
		if err != nil {
			exitError("read reference file: %v", err)
		}
		reference = data
	}

	v, err := c.Service().VerifyIntegrity(ctx, args[0], reference)
	if err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	fmt.Printf("stored hash:   %s\n", v.StoredHash)
	fmt.Printf("computed hash: %s\n", v.ComputedHash)
	fmt.Printf("stored size:   %d bytes\n", v.StoredSize)
	if reference != nil {
		fmt.Printf("reference:     %d bytes\n", v.ReferenceSize)
	}

	if v.HashMatch && v.SizeMatch {
		green.Println("OK: hash and size match")
		return
	}
	if !v.HashMatch {
		red.Println("FAIL: hash mismatch")
	}
	if !v.SizeMatch {
		red.Println("FAIL: size mismatch")
	}
	os.Exit(1)
}
