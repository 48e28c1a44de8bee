package sites

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/model"
	"github.com/amishk599/autosignin/internal/ocr"
	"github.com/amishk599/autosignin/internal/ratelimit"
	"github.com/amishk599/autosignin/internal/retry"
)

// maxBody caps how much of a page a handler reads.
const maxBody = 4 << 20

// retryDelay is the base backoff for handler requests.
var retryDelay = 2 * time.Second

// Deps are the collaborators shared by every handler of a run.
type Deps struct {
	// Limiter is shared so all jobs for one host draw from one budget. Nil disables limiting.
	Limiter *ratelimit.HostLimiter
	// OCR overrides the recognizer built from the aipocr config.
	OCR ocr.Recognizer
}

// newClient returns the HTTP client for one job: a cookie jar seeded with
// cookie for base, the configured user agent and timeout, per-host rate
// limiting and transient-error retries.
func newClient(cfg *config.Config, deps Deps, base, cookie string) (*http.Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse site url %q: %w", base, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if cookie != "" {
		cookies, err := http.ParseCookie(cookie)
		if err != nil {
			return nil, fmt.Errorf("parse cookie: %w", err)
		}
		jar.SetCookies(u, cookies)
	}

	var rt http.RoundTripper = http.DefaultTransport
	if deps.Limiter != nil {
		rt = ratelimit.NewTransport(rt, deps.Limiter)
	}
	rt = retry.NewTransport(rt, cfg.HTTP.Retries, retryDelay)
	rt = &headerTransport{inner: rt, userAgent: cfg.UserAgent}

	return &http.Client{Jar: jar, Transport: rt, Timeout: cfg.HTTP.Timeout}, nil
}

// headerTransport sets the headers every request to a site carries.
type headerTransport struct {
	inner     http.RoundTripper
	userAgent string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.inner.RoundTrip(req)
}

func get(ctx context.Context, client *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	return do(client, req)
}

func postForm(ctx context.Context, client *http.Client, target string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(client, req)
}

func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s %s: unexpected status", req.Method, req.URL.Redacted()),
		}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", req.Method, req.URL.Redacted(), err)
	}
	return body, nil
}

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	htmlScriptRegex = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
)

// extractText converts an HTML page to plain text: scripts and styles are
// dropped, tags stripped, entities unescaped and whitespace collapsed.
func extractText(page string) string {
	page = htmlScriptRegex.ReplaceAllString(page, " ")
	plain := htmlTagRegex.ReplaceAllString(page, " ")
	plain = html.UnescapeString(plain)
	return strings.Join(strings.Fields(plain), " ")
}
