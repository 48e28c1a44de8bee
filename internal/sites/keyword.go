package sites

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/model"
)

// keywordAccount is one account of a generic keyword site.
type keywordAccount struct {
	URL     string            `yaml:"url"`
	Cookie  string            `yaml:"cookie"`
	Method  string            `yaml:"method"`
	Data    map[string]string `yaml:"data"`
	Succeed []string          `yaml:"succeed"`
	Fail    []string          `yaml:"fail"`
}

// Keyword signs in to an arbitrary page by requesting a URL and matching the
// response against success and failure patterns. Each account names its own
// URL, so one Keyword site can cover many small sites.
type Keyword struct {
	id   string
	deps Deps
}

// NewKeyword creates a keyword site registered under id.
func NewKeyword(id string, deps Deps) *Keyword {
	return &Keyword{id: id, deps: deps}
}

func (k *Keyword) ID() string                       { return k.id }
func (k *Keyword) Capabilities() model.Capabilities { return model.Capabilities{} }

func (k *Keyword) SignInSchema() model.Schema {
	account := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":     map[string]any{"type": "string", "format": "uri"},
			"cookie":  map[string]any{"type": "string"},
			"method":  map[string]any{"type": "string", "enum": []any{"GET", "POST"}},
			"data":    map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
			"succeed": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 1},
			"fail":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []any{"url", "succeed"},
		"additionalProperties": false,
	}
	return model.Schema{k.id: map[string]any{
		"oneOf": []any{account, map[string]any{"type": "array", "items": account}},
	}}
}

func (k *Keyword) ReseedSchema() model.Schema { return nil }

// BuildSignInEntry validates the account and records its URL on the job.
func (k *Keyword) BuildSignInEntry(job *model.Job, _ *config.Config) error {
	acct, err := decodeKeyword(job.Account)
	if err != nil {
		return err
	}
	job.Extra["url"] = acct.URL
	job.Extra["cookie"] = acct.Cookie
	return nil
}

func (k *Keyword) BuildReseedEntry(job *model.Job, cfg *config.Config, site, passkey, torrentID string) error {
	return DefaultReseedEntry(job, cfg, site, passkey, torrentID)
}

func (k *Keyword) NewHandler() model.Handler {
	return &keywordHandler{deps: k.deps}
}

func decodeKeyword(account any) (*keywordAccount, error) {
	var acct keywordAccount
	if err := model.DecodeAccount(account, &acct); err != nil {
		return nil, err
	}
	u, err := url.Parse(acct.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", acct.URL)
	}
	if len(acct.Succeed) == 0 {
		return nil, errors.New("at least one succeed pattern is required")
	}
	for _, p := range append(append([]string(nil), acct.Succeed...), acct.Fail...) {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	acct.Method = strings.ToUpper(strings.TrimSpace(acct.Method))
	if acct.Method == "" {
		acct.Method = http.MethodGet
	}
	if acct.Method != http.MethodGet && acct.Method != http.MethodPost {
		return nil, fmt.Errorf("unsupported method %q", acct.Method)
	}
	return &acct, nil
}

type keywordHandler struct {
	deps Deps
}

func (h *keywordHandler) SignIn(ctx context.Context, job *model.Job, cfg *config.Config) error {
	acct, err := decodeKeyword(job.Account)
	if err != nil {
		return err
	}
	client, err := newClient(cfg, h.deps, acct.URL, acct.Cookie)
	if err != nil {
		return err
	}

	var body []byte
	if acct.Method == http.MethodPost {
		form := url.Values{}
		for k, v := range acct.Data {
			form.Set(k, v)
		}
		body, err = postForm(ctx, client, acct.URL, form)
	} else {
		body, err = get(ctx, client, acct.URL)
	}
	if err != nil {
		return err
	}
	page := string(body)
	job.Scratch = page

	for _, p := range acct.Fail {
		if m := regexp.MustCompile(p).FindString(page); m != "" {
			job.Fail(m)
			return nil
		}
	}
	for _, p := range acct.Succeed {
		if m := regexp.MustCompile(p).FindString(page); m != "" {
			job.Result = strings.TrimSpace(extractText(m))
			if job.Result == "" {
				job.Result = "signed in"
			}
			return nil
		}
	}
	job.Fail("no succeed pattern matched")
	return nil
}

// GetMessages is a no-op; keyword sites only sign in.
func (h *keywordHandler) GetMessages(context.Context, *model.Job, *config.Config) error { return nil }

// GetDetails is a no-op; keyword sites only sign in.
func (h *keywordHandler) GetDetails(context.Context, *model.Job, *config.Config) error { return nil }
