package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive storage statistics",
	Run:   runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	stats, err := c.Service().Stats(ctx)
	if err != nil {
		exitError("stats failed: %v", err)
	}

	fmt.Printf("Documents: %d\n", stats.TotalDocuments)
	fmt.Printf("Total size: %.2f MB (%d bytes)\n",
		float64(stats.TotalBytes)/(1024*1024), stats.TotalBytes)

	if len(stats.ByOrganization) == 0 {
		return
	}

	orgs := make([]string, 0, len(stats.ByOrganization))
	for org := range stats.ByOrganization {
		orgs = append(orgs, org)
	}
	sort.Slice(orgs, func(i, j int) bool {
		if stats.ByOrganization[orgs[i]] != stats.ByOrganization[orgs[j]] {
			return stats.ByOrganization[orgs[i]] > stats.ByOrganization[orgs[j]]
		}
		return orgs[i] < orgs[j]
	})

	cyan := color.New(color.FgCyan)
	fmt.Println("\nBy organization:")
	for _, org := range orgs {
		name := org
		if name == "" {
			name = "(none)"
		}
		cyan.Printf("  %-40s", name)
		fmt.Printf(" %d\n", stats.ByOrganization[org])
	}
}
