package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/autosignin/internal/filter"
	"github.com/amishk599/autosignin/internal/notifier"
	"github.com/amishk599/autosignin/internal/runner"
)

var (
	onlySites []string
	skipSites []string
	dryRun    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sign in to every configured site once, then exit",
	Long:  "One-shot run: signs in to the configured sites, prints the report, stores it and sends the notification.",
	RunE:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&onlySites, "site", nil, "only run these site IDs (repeatable)")
	cmd.Flags().StringSliceVar(&skipSites, "skip", nil, "skip these site IDs (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not store the report or send notifications")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs, err := setupLogs(cfg, debug)
	if err != nil {
		return err
	}
	defer logs.Close()
	logger := logs.Logger()

	logger.Info().
		Int("sites", len(cfg.Sites)).
		Int("max_workers", cfg.MaxWorkers).
		Bool("get_messages", cfg.GetMessages).
		Bool("get_details", cfg.GetDetails).
		Msg("config loaded")

	st, err := openStore(cfg, dryRun)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := []runner.Option{
		runner.WithStore(st),
		runner.WithOutput(cmd.OutOrStdout()),
		runner.WithFilter(filter.NewSiteFilter(onlySites, skipSites)),
	}
	if dryRun {
		logger.Info().Msg("dry-run mode enabled, nothing will be stored or sent")
	} else {
		n, err := notifier.New(cfg.Notification, logger)
		if err != nil {
			return err
		}
		opts = append(opts, runner.WithNotifier(n))
	}

	r, err := newRunner(cfg, logs, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := r.Run(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("run aborted")
		return err
	}
	return nil
}
