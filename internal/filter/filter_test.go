package filter

import (
	"testing"
)

func TestSiteFilter_Match(t *testing.T) {
	tests := []struct {
		name      string
		include   []string
		exclude   []string
		siteID    string
		wantMatch bool
	}{
		{
			name:      "empty lists pass all",
			siteID:    "hdtime",
			wantMatch: true,
		},
		{
			name:      "included site",
			include:   []string{"hdtime", "pttime"},
			siteID:    "pttime",
			wantMatch: true,
		},
		{
			name:      "site outside include list",
			include:   []string{"hdtime"},
			siteID:    "pttime",
			wantMatch: false,
		},
		{
			name:      "case insensitive matching",
			include:   []string{" HDTime "},
			siteID:    "hdtime",
			wantMatch: true,
		},
		{
			name:      "exclude wins over include",
			include:   []string{"hdtime"},
			exclude:   []string{"hdtime"},
			siteID:    "hdtime",
			wantMatch: false,
		},
		{
			name:      "exclude only",
			exclude:   []string{"hdsky"},
			siteID:    "hdtime",
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewSiteFilter(tt.include, tt.exclude)
			if got := f.Match(tt.siteID); got != tt.wantMatch {
				t.Errorf("Match(%q) = %v, want %v", tt.siteID, got, tt.wantMatch)
			}
		})
	}
}

func TestSiteFilter_Apply(t *testing.T) {
	sites := map[string]any{"hdtime": "a", "pttime": "b", "hdsky": "c"}

	got, err := NewSiteFilter(nil, []string{"hdsky"}).Apply(sites)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(got) != 2 || got["hdsky"] != nil {
		t.Errorf("Apply = %v, want hdtime and pttime", got)
	}
	if len(sites) != 3 {
		t.Error("Apply must not modify its input")
	}
}

func TestSiteFilter_ApplyUnknownInclude(t *testing.T) {
	sites := map[string]any{"hdtime": "a"}

	if _, err := NewSiteFilter([]string{"hdtiem"}, nil).Apply(sites); err == nil {
		t.Fatal("expected error for an include that is not configured")
	}
}
