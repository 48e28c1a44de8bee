// Package sites holds the built-in site implementations and the defaults
// they share.
package sites

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/model"
)

var errNoCookie = errors.New("cookie is required")

// cookieSchema accepts either a bare cookie string or {cookie: string}.
var cookieSchema = map[string]any{
	"oneOf": []any{
		map[string]any{"type": "string"},
		map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"cookie": map[string]any{"type": "string"}},
			"required":             []any{"cookie"},
			"additionalProperties": false,
		},
	},
}

var passkeySchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{"passkey": map[string]any{"type": "string"}},
	"required":   []any{"passkey"},
}

// Base provides the default schema and entry hooks for cookie-authenticated
// sites. Concrete sites embed it and add NewHandler.
type Base struct {
	SiteID string
	URL    string // site root, no trailing slash
}

// ID returns the site ID.
func (b Base) ID() string { return b.SiteID }

// Capabilities reports no optional features.
func (b Base) Capabilities() model.Capabilities { return model.Capabilities{} }

// SignInSchema accepts a cookie per account.
func (b Base) SignInSchema() model.Schema {
	return model.Schema{b.SiteID: cookieSchema}
}

// ReseedSchema accepts a passkey.
func (b Base) ReseedSchema() model.Schema {
	return model.Schema{b.SiteID: passkeySchema}
}

// BuildSignInEntry copies the account cookie and the site URL onto the job.
func (b Base) BuildSignInEntry(job *model.Job, _ *config.Config) error {
	cookie, err := accountCookie(job.Account)
	if err != nil {
		return err
	}
	if cookie == "" {
		return errNoCookie
	}
	job.Extra["url"] = b.URL
	job.Extra["cookie"] = cookie
	return nil
}

// BuildReseedEntry uses the default download URL layout.
func (b Base) BuildReseedEntry(job *model.Job, cfg *config.Config, site, passkey, torrentID string) error {
	return DefaultReseedEntry(job, cfg, site, passkey, torrentID)
}

// DefaultReseedEntry points job at the NexusPHP style download URL
// "{site}/download.php?id={torrentID}&passkey={passkey}". A site without a
// scheme is assumed to be https.
func DefaultReseedEntry(job *model.Job, _ *config.Config, site, passkey, torrentID string) error {
	site = strings.TrimRight(strings.TrimSpace(site), "/")
	if site == "" {
		return errors.New("reseed site is empty")
	}
	if torrentID == "" {
		return errors.New("reseed torrent id is empty")
	}
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}

	q := url.Values{"id": {torrentID}}
	if passkey != "" {
		q.Set("passkey", passkey)
	}
	job.Extra["url"] = fmt.Sprintf("%s/download.php?%s", site, q.Encode())
	return nil
}

type cookieAccount struct {
	Cookie string `yaml:"cookie"`
}

// accountCookie reads the cookie from a bare string or a {cookie: ...} mapping.
func accountCookie(account any) (string, error) {
	switch v := account.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	}
	var a cookieAccount
	if err := model.DecodeAccount(account, &a); err != nil {
		return "", err
	}
	return strings.TrimSpace(a.Cookie), nil
}
