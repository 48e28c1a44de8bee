package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/notifier"
	"github.com/amishk599/autosignin/internal/runner"
	"github.com/amishk599/autosignin/internal/scheduler"
)

var runNow bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sign-in daemon",
	Long:  "Start the scheduler daemon; runs on the configured schedule, reloads the config file on change and blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVar(&runNow, "now", false, "perform one run immediately on startup")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	path := resolveConfigPath(cfgPath)
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
		Str("config", path).
		Str("schedule", cfg.Schedule).
		Str("timezone", cfg.Location().String()).
		Int("sites", len(cfg.Sites)).
		Msg("config loaded")

	st, err := openStore(cfg, false)
	if err != nil {
		return err
	}
	defer st.Close()

	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	run := func(ctx context.Context) {
		cfg := current.Load()
		n, err := notifier.New(cfg.Notification, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to set up notifier")
			return
		}
		r, err := newRunner(cfg, logs,
			runner.WithStore(st),
			runner.WithNotifier(n),
			runner.WithOutput(cmd.OutOrStdout()),
		)
		if err != nil {
			logger.Error().Err(err).Msg("failed to set up sites")
			return
		}
		if _, err := r.Run(ctx, cfg); err != nil {
			logger.Error().Err(err).Msg("run aborted")
		}
	}

	sched, err := scheduler.NewScheduler(cfg.Schedule, cfg.Location(), run, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		err := config.Watch(ctx, path, func(next *config.Config, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("config reload failed, keeping previous config")
				return
			}
			if err := sched.Reschedule(next.Schedule, next.Location()); err != nil {
				logger.Error().Err(err).Msg("config reload failed, keeping previous config")
				return
			}
			current.Store(next)
			logger.Info().Int("sites", len(next.Sites)).Msg("config reloaded")
		})
		if err != nil {
			logger.Warn().Err(err).Msg("config watcher stopped")
		}
	}()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Debug().Err(err).Msg("sd_notify ready")
	}

	if err := sched.Run(ctx, runNow); err != nil {
		logger.Error().Err(err).Msg("scheduler error")
		return err
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	logger.Info().Msg("goodbye")
	return nil
}
