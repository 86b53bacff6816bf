// Command paperstore manages a content-addressable publication archive.
package main

import (
	"os"

	"github.com/yitwn/paperstore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
