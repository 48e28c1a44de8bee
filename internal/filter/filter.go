package filter

import (
	"fmt"
	"sort"
	"strings"
)

// SiteFilter restricts a run to a subset of the configured sites.
// Matching is case-insensitive. An empty include list is treated as "match all";
// excludes always win.
type SiteFilter struct {
	include map[string]bool
	exclude map[string]bool
}

// NewSiteFilter returns a filter keeping sites named in include (all when
// empty) minus those named in exclude.
func NewSiteFilter(include, exclude []string) *SiteFilter {
	return &SiteFilter{
		include: toSet(include),
		exclude: toSet(exclude),
	}
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			set[id] = true
		}
	}
	return set
}

// Match returns true if siteID passes the include and exclude lists.
func (f *SiteFilter) Match(siteID string) bool {
	id := strings.ToLower(siteID)
	if f.exclude[id] {
		return false
	}
	return len(f.include) == 0 || f.include[id]
}

// Apply returns the subset of sites that match. Naming a site in the include
// list that is not configured is an error, so typos do not silently run
// nothing.
func (f *SiteFilter) Apply(sites map[string]any) (map[string]any, error) {
	configured := make(map[string]bool, len(sites))
	for id := range sites {
		configured[strings.ToLower(id)] = true
	}
	var missing []string
	for id := range f.include {
		if !configured[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("sites not configured: %s", strings.Join(missing, ", "))
	}

	out := make(map[string]any, len(sites))
	for id, v := range sites {
		if f.Match(id) {
			out[id] = v
		}
	}
	return out, nil
}
