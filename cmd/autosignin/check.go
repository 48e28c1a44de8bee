package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/autosignin/internal/jobs"
	"github.com/amishk599/autosignin/internal/scheduler"
	"github.com/amishk599/autosignin/internal/sites"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config and list today's jobs",
	Long:  "Loads the config, validates the schedule and builds every job without contacting any site.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := scheduler.Validate(cfg.Schedule, cfg.Location()); err != nil {
		return err
	}

	reg, err := sites.NewRegistry(sites.Deps{})
	if err != nil {
		return err
	}
	built, err := jobs.Build(cfg, reg, time.Now)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, job := range built {
		fmt.Fprintf(out, "  %s\n", job.Title)
	}
	fmt.Fprintf(out, "\nconfig ok: %d jobs across %d sites, schedule %q (%s)\n",
		len(built), len(cfg.Sites), cfg.Schedule, cfg.Location())
	return nil
}
