package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrSchemaCollision is the cause of a SchemaAggregationError when two sites
// contribute the same schema key.
var ErrSchemaCollision = errors.New("schema key claimed by more than one site")

// UnknownSiteError is returned when no handler is registered for a site ID.
type UnknownSiteError struct {
	SiteID string
}

func (e *UnknownSiteError) Error() string {
	return fmt.Sprintf("unknown site %q: no handler registered", e.SiteID)
}

// DuplicateSiteError is returned when a site ID is registered twice.
type DuplicateSiteError struct {
	SiteID string
}

func (e *DuplicateSiteError) Error() string {
	return fmt.Sprintf("site %q registered more than once", e.SiteID)
}

// SchemaAggregationError names the site whose schema fragment could not be merged.
// Conflict is set to the other site when the cause is a key collision.
type SchemaAggregationError struct {
	Site     string
	Conflict string
	Key      string
	Err      error
}

func (e *SchemaAggregationError) Error() string {
	if e.Conflict != "" {
		return fmt.Sprintf("site: %s, error: key %q also declared by site %s: %v", e.Site, e.Key, e.Conflict, e.Err)
	}
	return fmt.Sprintf("site: %s, error: %v", e.Site, e.Err)
}

func (e *SchemaAggregationError) Unwrap() error {
	return e.Err
}

// EntryBuildError wraps a failure of a site's entry-construction hook.
type EntryBuildError struct {
	SiteID string
	Err    error
}

func (e *EntryBuildError) Error() string {
	return fmt.Sprintf("site: %s, error: %v", e.SiteID, e.Err)
}

func (e *EntryBuildError) Unwrap() error {
	return e.Err
}

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
