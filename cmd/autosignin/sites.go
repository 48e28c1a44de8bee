package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/autosignin/internal/sites"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List all supported sites",
	Long:  "Prints a table of every built-in site and how many accounts the config has for it.",
	RunE:  runSites,
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}

func runSites(cmd *cobra.Command, args []string) error {
	reg, err := sites.NewRegistry(sites.Deps{})
	if err != nil {
		return err
	}

	// The config is optional here; without it only the supported sites are shown.
	configured := map[string]any{}
	if cfg, err := loadConfig(); err == nil {
		configured = cfg.Sites
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-15s %-8s %s\n", "Site", "Reseed", "Accounts")
	fmt.Fprintln(out, strings.Repeat("─", 34))

	total := 0
	for _, s := range reg.Sites() {
		reseed := "no"
		if s.Capabilities().Reseed {
			reseed = "yes"
		}
		n := accountCount(configured[s.ID()])
		total += n
		fmt.Fprintf(out, "%-15s %-8s %d\n", s.ID(), reseed, n)
	}

	fmt.Fprintf(out, "\nTotal: %d sites supported, %d accounts configured\n", len(reg.Sites()), total)
	return nil
}

func accountCount(v any) int {
	switch accounts := v.(type) {
	case nil:
		return 0
	case []any:
		return len(accounts)
	case []map[string]any:
		return len(accounts)
	default:
		return 1
	}
}
