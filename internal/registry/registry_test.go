package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/model"
)

type mockSite struct {
	id       string
	reseed   bool
	schema   model.Schema
	reseeded int
	err      error
}

func (m *mockSite) ID() string                      { return m.id }
func (m *mockSite) Capabilities() model.Capabilities { return model.Capabilities{Reseed: m.reseed} }
func (m *mockSite) NewHandler() model.Handler        { return nopHandler{} }

func (m *mockSite) BuildSignInEntry(*model.Job, *config.Config) error { return nil }

func (m *mockSite) ReseedSchema() model.Schema {
	return model.Schema{m.id: map[string]any{"type": "string"}}
}

func (m *mockSite) SignInSchema() model.Schema {
	if m.schema != nil {
		return m.schema
	}
	return model.Schema{m.id: map[string]any{"type": "string"}}
}

func (m *mockSite) BuildReseedEntry(job *model.Job, _ *config.Config, _, _, _ string) error {
	m.reseeded++
	job.Extra["reseeded_by"] = m.id
	return m.err
}

type nopHandler struct{}

func (nopHandler) SignIn(context.Context, *model.Job, *config.Config) error      { return nil }
func (nopHandler) GetMessages(context.Context, *model.Job, *config.Config) error { return nil }
func (nopHandler) GetDetails(context.Context, *model.Job, *config.Config) error  { return nil }

func TestRegistry_Resolve(t *testing.T) {
	r := New(nil)
	if err := r.Register(&mockSite{id: "siteA"}, &mockSite{id: "siteB"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	s, err := r.Resolve("siteB")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.ID() != "siteB" {
		t.Errorf("Resolve(siteB).ID() = %q", s.ID())
	}
	if got := len(r.Sites()); got != 2 {
		t.Errorf("Sites() len = %d, want 2", got)
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := New(nil)

	_, err := r.Resolve("nope")
	var unknown *model.UnknownSiteError
	if !errors.As(err, &unknown) {
		t.Fatalf("Resolve err = %v, want UnknownSiteError", err)
	}
	if unknown.SiteID != "nope" {
		t.Errorf("SiteID = %q, want nope", unknown.SiteID)
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := New(nil)
	err := r.Register(&mockSite{id: "siteA"}, &mockSite{id: "siteA"})

	var dup *model.DuplicateSiteError
	if !errors.As(err, &dup) {
		t.Fatalf("Register err = %v, want DuplicateSiteError", err)
	}
}

func TestRegistry_SignInSchemaDisjoint(t *testing.T) {
	r := New(nil)
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		if err := r.Register(&mockSite{id: id}); err != nil {
			t.Fatal(err)
		}
	}

	schema, err := r.SignInSchema()
	if err != nil {
		t.Fatalf("SignInSchema: %v", err)
	}
	if len(schema) != len(ids) {
		t.Fatalf("schema has %d entries, want %d", len(schema), len(ids))
	}
	for _, id := range ids {
		if _, ok := schema[id]; !ok {
			t.Errorf("schema missing %q", id)
		}
	}
}

func TestRegistry_SignInSchemaCollision(t *testing.T) {
	r := New(nil)
	r.Register(
		&mockSite{id: "siteA"},
		&mockSite{id: "impostor", schema: model.Schema{"siteA": map[string]any{}}},
	)

	_, err := r.SignInSchema()
	var aggErr *model.SchemaAggregationError
	if !errors.As(err, &aggErr) {
		t.Fatalf("SignInSchema err = %v, want SchemaAggregationError", err)
	}
	if !errors.Is(err, model.ErrSchemaCollision) {
		t.Errorf("err should wrap ErrSchemaCollision: %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "siteA") || !strings.Contains(msg, "impostor") {
		t.Errorf("error should name both sites: %q", msg)
	}
}

func TestRegistry_SignInSchemaEmptyKey(t *testing.T) {
	r := New(nil)
	r.Register(&mockSite{id: "broken", schema: model.Schema{"": true}})

	_, err := r.SignInSchema()
	var aggErr *model.SchemaAggregationError
	if !errors.As(err, &aggErr) || aggErr.Site != "broken" {
		t.Fatalf("SignInSchema err = %v, want SchemaAggregationError for broken", err)
	}
}

func TestRegistry_ReseedSchemaOnlyCapableSites(t *testing.T) {
	r := New(nil)
	r.Register(&mockSite{id: "plain"}, &mockSite{id: "seeder", reseed: true})

	schema, err := r.ReseedSchema()
	if err != nil {
		t.Fatalf("ReseedSchema: %v", err)
	}
	if len(schema) != 1 {
		t.Fatalf("reseed schema = %v, want only seeder", schema)
	}
	if _, ok := schema["seeder"]; !ok {
		t.Errorf("reseed schema missing seeder: %v", schema)
	}
}

func TestRegistry_BuildReseedEntryFallback(t *testing.T) {
	var fallbackCalls int
	r := New(func(job *model.Job, _ *config.Config, site, passkey, torrentID string) error {
		fallbackCalls++
		job.Extra["url"] = site + "/" + torrentID
		return nil
	})
	plain := &mockSite{id: "plain"}
	seeder := &mockSite{id: "seeder", reseed: true}
	r.Register(plain, seeder)

	job := model.NewJob("plain", nil, "plain")
	if err := r.BuildReseedEntry(job, &config.Config{}, "https://x", "pk", "42"); err != nil {
		t.Fatalf("BuildReseedEntry(plain): %v", err)
	}
	if fallbackCalls != 1 || plain.reseeded != 0 {
		t.Errorf("plain site should use fallback: fallback=%d site=%d", fallbackCalls, plain.reseeded)
	}
	if job.ExtraString("url") != "https://x/42" {
		t.Errorf("url = %q", job.ExtraString("url"))
	}

	job = model.NewJob("seeder", nil, "seeder")
	if err := r.BuildReseedEntry(job, &config.Config{}, "https://x", "pk", "42"); err != nil {
		t.Fatalf("BuildReseedEntry(seeder): %v", err)
	}
	if seeder.reseeded != 1 || fallbackCalls != 1 {
		t.Errorf("seeder should build its own entry: fallback=%d site=%d", fallbackCalls, seeder.reseeded)
	}
}

func TestRegistry_BuildReseedEntryError(t *testing.T) {
	r := New(nil)
	r.Register(&mockSite{id: "seeder", reseed: true, err: errors.New("no passkey")})

	err := r.BuildReseedEntry(model.NewJob("seeder", nil, "seeder"), &config.Config{}, "s", "", "1")
	var buildErr *model.EntryBuildError
	if !errors.As(err, &buildErr) || buildErr.SiteID != "seeder" {
		t.Fatalf("err = %v, want EntryBuildError for seeder", err)
	}
}

func TestRegistry_Validate(t *testing.T) {
	r := New(nil)
	if err := r.Register(&mockSite{id: "siteA", reseed: true}, &mockSite{id: "siteB"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate = %v, want nil for disjoint schemas", err)
	}

	clash := &mockSite{id: "siteC", schema: model.Schema{"siteA": map[string]any{"type": "string"}}}
	if err := r.Register(clash); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := r.Validate()
	var aggErr *model.SchemaAggregationError
	if !errors.As(err, &aggErr) {
		t.Fatalf("Validate err = %v, want SchemaAggregationError", err)
	}
	if aggErr.Site != "siteC" || aggErr.Conflict != "siteA" {
		t.Errorf("error names %q/%q, want siteC/siteA", aggErr.Site, aggErr.Conflict)
	}
}
