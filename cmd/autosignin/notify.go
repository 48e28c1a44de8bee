package main

import (
	"github.com/spf13/cobra"

	"github.com/amishk599/autosignin/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long:  "Sends a sample report using the configured notifier.",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
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

	n, err := notifier.New(cfg.Notification, logger)
	if err != nil {
		return err
	}
	if err := notifier.SendTestMessage(n); err != nil {
		logger.Error().Err(err).Msg("test notification failed")
		return err
	}
	logger.Info().Str("type", cfg.Notification.Type).Msg("test notification sent successfully")
	return nil
}
