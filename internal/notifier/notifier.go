package notifier

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/model"
)

// New builds the notifier selected by cfg.Type.
func New(cfg config.NotificationConfig, logger zerolog.Logger) (model.Notifier, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	switch cfg.Type {
	case "", "log":
		return NewLogNotifier(logger), nil
	case "slack":
		return NewSlackNotifier(cfg.WebhookURL, client, logger), nil
	case "telegram":
		return NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, "", client, logger)
	default:
		return nil, fmt.Errorf("unsupported notification type: %q", cfg.Type)
	}
}

// SendTestMessage sends a sample report to verify the integration works.
func SendTestMessage(n model.Notifier) error {
	now := time.Now()
	r := &model.Report{
		RunID:      uuid.NewString(),
		StartedAt:  now,
		FinishedAt: now,
		Entries: []model.ReportEntry{
			{
				SiteID:  "test",
				Title:   "test " + now.Format("2006-01-02"),
				Result:  "Test notification, integration verified",
				Details: "uploaded: 1.00 TB, downloaded: 100.00 GB, ratio: 10.240",
			},
		},
	}
	return n.Notify(r)
}
