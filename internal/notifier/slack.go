package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/amishk599/autosignin/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// slackBlockLimit is the number of blocks Slack accepts in one message.
const slackBlockLimit = 50

// SlackNotifier sends run reports to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewSlackNotifier returns a notifier that posts reports to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify sends the report as one Block Kit message. An empty report is not sent.
func (s *SlackNotifier) Notify(r *model.Report) error {
	if len(r.Entries) == 0 && len(r.Rejected) == 0 {
		return nil
	}

	body, err := json.Marshal(buildPayload(r))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn().Int("retry_after_secs", secs).Msg("slack rate limited, retrying")
		time.Sleep(time.Duration(secs) * time.Second)

		resp2, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", resp2.StatusCode)
		}
		s.logger.Info().Str("run_id", r.RunID).Bool("retried", true).Msg("slack report sent")
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	s.logger.Info().Str("run_id", r.RunID).Msg("slack report sent")
	return nil
}

// Block Kit payload types.

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildPayload(r *model.Report) slackPayload {
	headline := fmt.Sprintf("Sign-in report: %d succeeded, %d failed, %d rejected",
		r.Succeeded(), r.FailedCount(), len(r.Rejected))

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: headline},
		},
	}

	for _, e := range r.Entries {
		if len(blocks) >= slackBlockLimit-2 {
			break
		}
		if e.Failed {
			blocks = append(blocks, slackBlock{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf(":x: *%s*\n%s", e.Title, e.Reason)},
			})
			continue
		}
		lines := []string{fmt.Sprintf(":white_check_mark: *%s*", e.Title), e.Result}
		if e.Messages != "" {
			lines = append(lines, "*Messages:* "+e.Messages)
		}
		if e.Details != "" {
			lines = append(lines, "*Details:* "+e.Details)
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: strings.Join(lines, "\n")},
		})
	}

	if len(r.Rejected) > 0 {
		reasons := make([]string, len(r.Rejected))
		for i, e := range r.Rejected {
			reasons[i] = "• " + e.Reason
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Rejected*\n" + strings.Join(reasons, "\n")},
		})
	}

	blocks = append(blocks, slackBlock{Type: "divider"})
	return slackPayload{Text: headline, Blocks: blocks}
}
