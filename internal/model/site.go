package model

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/autosignin/internal/config"
)

// Schema is a configuration schema fragment keyed by site ID.
type Schema map[string]any

// Capabilities declares the optional features a site supports.
type Capabilities struct {
	Reseed bool
}

// Site describes one supported site: its config shape, how to prepare jobs for
// it, and how to create a handler. A Site is registered once and read
// concurrently afterwards, so implementations must not mutate themselves.
type Site interface {
	ID() string
	Capabilities() Capabilities
	SignInSchema() Schema
	ReseedSchema() Schema
	BuildSignInEntry(job *Job, cfg *config.Config) error
	BuildReseedEntry(job *Job, cfg *config.Config, site, passkey, torrentID string) error
	// NewHandler returns a fresh handler; one is created per job.
	NewHandler() Handler
}

// Handler runs the three sign-in stages for one job. A stage reports an
// expected failure with job.Fail and returns nil; a returned error is treated
// as an unexpected exception.
type Handler interface {
	SignIn(ctx context.Context, job *Job, cfg *config.Config) error
	GetMessages(ctx context.Context, job *Job, cfg *config.Config) error
	GetDetails(ctx context.Context, job *Job, cfg *config.Config) error
}

// DecodeAccount converts an opaque account config into dst by round-tripping
// it through YAML, so handlers can declare typed account structs.
func DecodeAccount(account any, dst any) error {
	data, err := yaml.Marshal(account)
	if err != nil {
		return fmt.Errorf("encode account config: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode account config: %w", err)
	}
	return nil
}
