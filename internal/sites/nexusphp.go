package sites

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/model"
)

// Sign-in confirmations shown by NexusPHP attendance pages.
var nexusSucceed = []*regexp.Regexp{
	regexp.MustCompile(`这是您的第\s*\d+\s*次签到[^。！!]{0,40}`),
	regexp.MustCompile(`這是您的第\s*\d+\s*次簽到[^。！!]{0,40}`),
	regexp.MustCompile(`您今天已经签到过了[^。！!]{0,40}`),
	regexp.MustCompile(`今日已签到`),
	regexp.MustCompile(`(?i)this is your \d+(st|nd|rd|th)? (check|sign)[- ]?in`),
	regexp.MustCompile(`(?i)you have already (checked|signed) in today`),
}

var (
	loginFormRegex = regexp.MustCompile(`(?i)<form[^>]+action="[^"]*takelogin\.php`)
	unreadPMRegex  = regexp.MustCompile(`(?i)<img[^>]+class="unreadpm"`)
	messageRegex   = regexp.MustCompile(`messages\.php\?action=viewmessage&(?:amp;)?id=\d+"[^>]*>([^<]+)<`)
)

// detailPatterns pull transfer statistics out of the user bar text.
var detailPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"uploaded", regexp.MustCompile(`(?i)(?:上传量|上傳量|uploaded)\s*[:：]?\s*([\d.,]+\s*[KMGTPE]i?B)`)},
	{"downloaded", regexp.MustCompile(`(?i)(?:下载量|下載量|downloaded)\s*[:：]?\s*([\d.,]+\s*[KMGTPE]i?B)`)},
	{"ratio", regexp.MustCompile(`(?i)(?:分享率|ratio)\s*[:：]?\s*([\d.,]+|---|inf\.?|无限)`)},
	{"points", regexp.MustCompile(`(?i)(?:魔力值|魔力|bonus|积分|積分)[^:：\d]{0,16}[:：]\s*([\d.,]+)`)},
}

// NexusPHP is a site running the NexusPHP tracker software.
type NexusPHP struct {
	Base
	deps Deps
}

// NewNexusPHP creates a NexusPHP site rooted at baseURL.
func NewNexusPHP(id, baseURL string, deps Deps) *NexusPHP {
	return &NexusPHP{
		Base: Base{SiteID: id, URL: strings.TrimRight(baseURL, "/")},
		deps: deps,
	}
}

// Capabilities reports reseed support.
func (s *NexusPHP) Capabilities() model.Capabilities {
	return model.Capabilities{Reseed: true}
}

// BuildReseedEntry builds the download URL against this site's own root.
func (s *NexusPHP) BuildReseedEntry(job *model.Job, cfg *config.Config, _, passkey, torrentID string) error {
	if passkey == "" {
		return fmt.Errorf("%s: passkey is required to reseed", s.SiteID)
	}
	return DefaultReseedEntry(job, cfg, s.URL, passkey, torrentID)
}

// NewHandler returns a handler for one job.
func (s *NexusPHP) NewHandler() model.Handler {
	return &nexusHandler{site: s.Base, deps: s.deps}
}

// nexusHandler keeps the job's HTTP client between stages.
type nexusHandler struct {
	site   Base
	deps   Deps
	client *http.Client
}

func (h *nexusHandler) connect(job *model.Job, cfg *config.Config) (*http.Client, error) {
	if h.client != nil {
		return h.client, nil
	}
	client, err := newClient(cfg, h.deps, h.site.URL, job.ExtraString("cookie"))
	if err != nil {
		return nil, err
	}
	h.client = client
	return client, nil
}

// page fetches path and fails the job when the session is no longer valid.
func (h *nexusHandler) page(ctx context.Context, job *model.Job, cfg *config.Config, path string) (string, bool, error) {
	client, err := h.connect(job, cfg)
	if err != nil {
		return "", false, err
	}
	body, err := get(ctx, client, h.site.URL+path)
	if err != nil {
		return "", false, err
	}
	page := string(body)
	if loginFormRegex.MatchString(page) {
		job.Fail("cookie expired")
		return "", false, nil
	}
	return page, true, nil
}

func (h *nexusHandler) SignIn(ctx context.Context, job *model.Job, cfg *config.Config) error {
	page, ok, err := h.page(ctx, job, cfg, "/attendance.php")
	if err != nil || !ok {
		return err
	}
	job.Scratch = page
	if result := matchSucceed(page); result != "" {
		job.Result = result
		return nil
	}
	zerolog.Ctx(ctx).Debug().Str("title", job.Title).Int("bytes", len(page)).Msg("no attendance confirmation on page")
	job.Fail("no sign-in confirmation found")
	return nil
}

func (h *nexusHandler) GetMessages(ctx context.Context, job *model.Job, cfg *config.Config) error {
	page, ok, err := h.page(ctx, job, cfg, "/messages.php?action=viewmailbox&box=1&unread=yes")
	if err != nil || !ok {
		return err
	}
	unread := len(unreadPMRegex.FindAllStringIndex(page, -1))
	if unread == 0 {
		return nil
	}
	var titles []string
	for _, m := range messageRegex.FindAllStringSubmatch(page, -1) {
		titles = append(titles, strings.TrimSpace(extractText(m[1])))
	}
	job.Messages = fmt.Sprintf("%d unread", unread)
	if len(titles) > 0 {
		job.Messages += ": " + strings.Join(titles, "; ")
	}
	return nil
}

func (h *nexusHandler) GetDetails(ctx context.Context, job *model.Job, cfg *config.Config) error {
	page, ok, err := h.page(ctx, job, cfg, "/index.php")
	if err != nil || !ok {
		return err
	}
	text := extractText(page)

	var parts []string
	for _, p := range detailPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			parts = append(parts, fmt.Sprintf("%s: %s", p.name, strings.TrimSpace(m[1])))
		}
	}
	if len(parts) == 0 {
		job.Fail("user details not found")
		return nil
	}
	job.Details = strings.Join(parts, ", ")
	return nil
}

// matchSucceed returns the first sign-in confirmation found in page.
func matchSucceed(page string) string {
	text := extractText(page)
	for _, re := range nexusSucceed {
		if m := re.FindString(text); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}
