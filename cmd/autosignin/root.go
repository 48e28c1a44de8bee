package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/logx"
	"github.com/amishk599/autosignin/internal/model"
	"github.com/amishk599/autosignin/internal/ratelimit"
	"github.com/amishk599/autosignin/internal/runner"
	"github.com/amishk599/autosignin/internal/sites"
	"github.com/amishk599/autosignin/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "autosignin",
	Short: "Daily check-in for private tracker sites",
	Long:  "autosignin signs in to every configured site once a day, collects unread messages and account details, and reports the outcome.",
	// Default to `run` so that `autosignin` with no args performs one run,
	// which is what a cron entry or systemd timer invokes.
	RunE:         runRun,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: AUTOSIGNIN_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	addRunFlags(rootCmd)
}

// resolveConfigPath applies the lookup order: explicit path > AUTOSIGNIN_CONFIG > "./config.yaml".
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("AUTOSIGNIN_CONFIG"); env != "" {
		return env
	}
	return "config.yaml"
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath(cfgPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setupLogs builds the logging service: colored output on stdout plus the
// configured JSON log file.
func setupLogs(cfg *config.Config, dbg bool) (*logx.Service, error) {
	level := cfg.Log.Level
	if dbg {
		level = "debug"
	}
	logs := logx.New(level)
	if err := logs.OpenFile(cfg.Log.File); err != nil {
		return nil, err
	}
	return logs, nil
}

// reportStore is a model.ReportStore that owns resources.
type reportStore interface {
	model.ReportStore
	Close() error
}

// openStore opens the report history; dry runs get a store that keeps nothing.
func openStore(cfg *config.Config, dryRun bool) (reportStore, error) {
	if dryRun {
		return store.NewNopStore(), nil
	}
	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

// newRunner builds the site registry for cfg and wraps it in a runner. The
// registry is rebuilt per run so reloaded rate limits take effect.
func newRunner(cfg *config.Config, logs *logx.Service, opts ...runner.Option) (*runner.Runner, error) {
	reg, err := sites.NewRegistry(sites.Deps{
		Limiter: ratelimit.NewHostLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
	})
	if err != nil {
		return nil, err
	}
	return runner.NewRunner(reg, logs, opts...), nil
}
