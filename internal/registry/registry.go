package registry

import (
	"errors"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/model"
)

// Registry holds registered sites keyed by site ID. It is written during
// startup and only read afterwards, so lookups need no locking.
type Registry struct {
	sites []model.Site
	byID  map[string]model.Site
	// fallback builds reseed entries for sites without the reseed capability.
	fallback ReseedFunc
}

// ReseedFunc builds a reseed entry for a job.
type ReseedFunc func(job *model.Job, cfg *config.Config, site, passkey, torrentID string) error

// New creates an empty registry. fallback is used by BuildReseedEntry for
// sites that do not declare the reseed capability; nil means no-op.
func New(fallback ReseedFunc) *Registry {
	return &Registry{
		byID:     make(map[string]model.Site),
		fallback: fallback,
	}
}

// Register adds sites to the registry. Registration stops at the first
// duplicate ID.
func (r *Registry) Register(sites ...model.Site) error {
	for _, s := range sites {
		id := s.ID()
		if _, ok := r.byID[id]; ok {
			return &model.DuplicateSiteError{SiteID: id}
		}
		r.byID[id] = s
		r.sites = append(r.sites, s)
	}
	return nil
}

// Resolve returns the site registered under siteID.
func (r *Registry) Resolve(siteID string) (model.Site, error) {
	s, ok := r.byID[siteID]
	if !ok {
		return nil, &model.UnknownSiteError{SiteID: siteID}
	}
	return s, nil
}

// Sites returns the registered sites in registration order.
func (r *Registry) Sites() []model.Site {
	return r.sites
}

// SignInSchema merges every site's sign-in schema fragment.
func (r *Registry) SignInSchema() (model.Schema, error) {
	return aggregate(r.sites, model.Site.SignInSchema)
}

// ReseedSchema merges the reseed schema fragments of sites that support reseeding.
func (r *Registry) ReseedSchema() (model.Schema, error) {
	var reseeders []model.Site
	for _, s := range r.sites {
		if s.Capabilities().Reseed {
			reseeders = append(reseeders, s)
		}
	}
	return aggregate(reseeders, model.Site.ReseedSchema)
}

// Validate aggregates both schemas once so that a collision or an empty key
// is reported before any job is built.
func (r *Registry) Validate() error {
	if _, err := r.SignInSchema(); err != nil {
		return err
	}
	if _, err := r.ReseedSchema(); err != nil {
		return err
	}
	return nil
}

// BuildReseedEntry prepares job for reseeding torrentID from site. Sites
// without the reseed capability get the fallback behavior.
func (r *Registry) BuildReseedEntry(job *model.Job, cfg *config.Config, site, passkey, torrentID string) error {
	s, err := r.Resolve(job.SiteID)
	if err != nil {
		return err
	}
	if s.Capabilities().Reseed {
		if err := s.BuildReseedEntry(job, cfg, site, passkey, torrentID); err != nil {
			return &model.EntryBuildError{SiteID: job.SiteID, Err: err}
		}
		return nil
	}
	if r.fallback == nil {
		return nil
	}
	if err := r.fallback(job, cfg, site, passkey, torrentID); err != nil {
		return &model.EntryBuildError{SiteID: job.SiteID, Err: err}
	}
	return nil
}

var errEmptyKey = errors.New("schema fragment has an empty key")

func aggregate(sites []model.Site, fragment func(model.Site) model.Schema) (model.Schema, error) {
	merged := make(model.Schema)
	owner := make(map[string]string)
	for _, s := range sites {
		id := s.ID()
		for key, value := range fragment(s) {
			if key == "" {
				return nil, &model.SchemaAggregationError{Site: id, Err: errEmptyKey}
			}
			if prev, ok := owner[key]; ok {
				return nil, &model.SchemaAggregationError{
					Site:     id,
					Conflict: prev,
					Key:      key,
					Err:      model.ErrSchemaCollision,
				}
			}
			owner[key] = id
			merged[key] = value
		}
	}
	return merged, nil
}
