package sites

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/model"
	"github.com/amishk599/autosignin/internal/ocr"
)

var imageHashRegex = regexp.MustCompile(`imagehash=([0-9a-fA-F]+)`)

// CaptchaNexusPHP is a NexusPHP site whose attendance form is guarded by an
// image captcha. The captcha is read with the aipocr credentials.
type CaptchaNexusPHP struct {
	NexusPHP
}

// NewCaptchaNexusPHP creates a captcha NexusPHP site rooted at baseURL.
func NewCaptchaNexusPHP(id, baseURL string, deps Deps) *CaptchaNexusPHP {
	return &CaptchaNexusPHP{NexusPHP: *NewNexusPHP(id, baseURL, deps)}
}

// NewHandler returns a handler for one job.
func (s *CaptchaNexusPHP) NewHandler() model.Handler {
	return &captchaHandler{nexusHandler: nexusHandler{site: s.Base, deps: s.deps}}
}

type captchaHandler struct {
	nexusHandler
}

func (h *captchaHandler) recognizer(cfg *config.Config) ocr.Recognizer {
	if h.deps.OCR != nil {
		return h.deps.OCR
	}
	return ocr.New(cfg.AipOCR, &http.Client{Timeout: cfg.HTTP.Timeout})
}

func (h *captchaHandler) SignIn(ctx context.Context, job *model.Job, cfg *config.Config) error {
	page, ok, err := h.page(ctx, job, cfg, "/attendance.php")
	if err != nil || !ok {
		return err
	}
	if result := matchSucceed(page); result != "" {
		job.Result = result
		return nil
	}

	m := imageHashRegex.FindStringSubmatch(page)
	if m == nil {
		job.Fail("captcha not found on attendance page")
		return nil
	}
	hash := m[1]

	client, err := h.connect(job, cfg)
	if err != nil {
		return err
	}
	image, err := get(ctx, client, h.site.URL+"/image.php?action=regimage&imagehash="+url.QueryEscape(hash))
	if err != nil {
		return err
	}

	code, err := h.recognizer(cfg).Recognize(ctx, image)
	if errors.Is(err, ocr.ErrDisabled) {
		job.Fail("aipocr is not configured")
		return nil
	}
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Str("title", job.Title).Str("captcha", code).Msg("captcha recognized")

	body, err := postForm(ctx, client, h.site.URL+"/attendance.php", url.Values{
		"imagehash":   {hash},
		"imagestring": {strings.TrimSpace(code)},
	})
	if err != nil {
		return err
	}
	job.Scratch = string(body)
	if result := matchSucceed(job.Scratch); result != "" {
		job.Result = result
		return nil
	}
	job.Failf("captcha %q rejected", code)
	return nil
}
