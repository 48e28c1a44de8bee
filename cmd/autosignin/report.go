package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amishk599/autosignin/internal/browse"
	"github.com/amishk599/autosignin/internal/report"
	"github.com/amishk599/autosignin/internal/store"
)

var (
	browseReports bool
	reportLimit   int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the latest stored run report",
	Long:  "Prints the most recent run report; --browse opens an interactive viewer over the stored history.",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&browseReports, "browse", false, "browse stored reports interactively (TUI)")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 30, "number of runs to load when browsing")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if browseReports {
		runs, err := st.Reports(reportLimit)
		if err != nil {
			return err
		}
		return browse.Run(runs)
	}

	rep, err := st.LatestReport()
	if errors.Is(err, store.ErrNoReports) {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s\n", rep.RunID)
	fmt.Fprint(cmd.OutOrStdout(), report.Render(rep))
	return nil
}
