package sites

import (
	"github.com/amishk599/autosignin/internal/model"
	"github.com/amishk599/autosignin/internal/registry"
)

// Builtin returns every site shipped with the binary.
func Builtin(deps Deps) []model.Site {
	return []model.Site{
		NewNexusPHP("btschool", "https://pt.btschool.club", deps),
		NewNexusPHP("hdarea", "https://hdarea.club", deps),
		NewNexusPHP("hdtime", "https://hdtime.org", deps),
		NewNexusPHP("pttime", "https://www.pttime.org", deps),
		NewCaptchaNexusPHP("hdsky", "https://hdsky.me", deps),
		NewCaptchaNexusPHP("opencd", "https://www.open.cd", deps),
		NewKeyword("http", deps),
	}
}

// NewRegistry returns a registry holding the built-in sites, falling back to
// DefaultReseedEntry for sites that cannot reseed. The merged schemas are
// checked before the registry is returned.
func NewRegistry(deps Deps) (*registry.Registry, error) {
	r := registry.New(DefaultReseedEntry)
	if err := r.Register(Builtin(deps)...); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
