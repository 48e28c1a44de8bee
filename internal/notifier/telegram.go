package notifier

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"github.com/amishk599/autosignin/internal/model"
	"github.com/amishk599/autosignin/internal/report"
)

// Ensure TelegramNotifier implements model.Notifier.
var _ model.Notifier = (*TelegramNotifier)(nil)

// telegramTextLimit is the maximum length of one Telegram message.
const telegramTextLimit = 4096

// TelegramNotifier sends the plain text report to one chat through a bot.
type TelegramNotifier struct {
	bot    *tele.Bot
	chatID int64
	logger zerolog.Logger
}

// NewTelegramNotifier creates a notifier for chatID. apiURL may be empty to
// use the public Bot API.
func NewTelegramNotifier(token string, chatID int64, apiURL string, httpClient *http.Client, logger zerolog.Logger) (*TelegramNotifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Client:  httpClient,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: b, chatID: chatID, logger: logger}, nil
}

// Notify sends the report summary, split across messages when it is too long.
func (n *TelegramNotifier) Notify(r *model.Report) error {
	if len(r.Entries) == 0 && len(r.Rejected) == 0 {
		return nil
	}

	chat := &tele.Chat{ID: n.chatID}
	chunks := splitText(report.Summary(r), telegramTextLimit)
	for _, chunk := range chunks {
		if _, err := n.bot.Send(chat, chunk, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
			return fmt.Errorf("send telegram report: %w", err)
		}
	}
	n.logger.Info().Str("run_id", r.RunID).Int("messages", len(chunks)).Msg("telegram report sent")
	return nil
}

// splitText cuts text into chunks of at most limit bytes, on line boundaries
// where possible.
func splitText(text string, limit int) []string {
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8Start(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return chunks
}

// utf8Start reports whether b begins a UTF-8 encoded rune.
func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
