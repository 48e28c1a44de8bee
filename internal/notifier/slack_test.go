package notifier

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/amishk599/autosignin/internal/model"
)

func sampleReport() *model.Report {
	started := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	return &model.Report{
		RunID:      "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Entries: []model.ReportEntry{
			{SiteID: "siteA", Title: "siteA 2026-10-17", Result: "signed in", Messages: "1 unread", Details: "ratio: 2.0"},
			{SiteID: "siteB", Title: "siteB 2026-10-17", Failed: true, Reason: "Sign_in=> cookie expired"},
		},
		Rejected: []model.ReportEntry{
			{SiteID: "siteC", Title: "siteC 2026-10-16", Failed: true, Reason: "siteC 2026-10-16 out of date!"},
		},
	}
}

func TestSlackNotifier_EmptyReport(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), zerolog.Nop())

	if err := n.Notify(&model.Report{}); err != nil {
		t.Errorf("Notify(empty) = %v, want nil", err)
	}
	if c := calls.Load(); c != 0 {
		t.Errorf("expected 0 HTTP calls, got %d", c)
	}
}

func TestSlackNotifier_Report(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), zerolog.Nop())
	if err := n.Notify(sampleReport()); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	if want := "Sign-in report: 1 succeeded, 1 failed, 1 rejected"; payload.Blocks[0].Text.Text != want {
		t.Errorf("header = %q, want %q", payload.Blocks[0].Text.Text, want)
	}
	ok := payload.Blocks[1].Text.Text
	if !strings.Contains(ok, "siteA 2026-10-17") || !strings.Contains(ok, "*Details:* ratio: 2.0") {
		t.Errorf("success block = %q", ok)
	}
	if failed := payload.Blocks[2].Text.Text; !strings.Contains(failed, ":x:") || !strings.Contains(failed, "cookie expired") {
		t.Errorf("failure block = %q", failed)
	}
	if rejected := payload.Blocks[3].Text.Text; !strings.Contains(rejected, "out of date!") {
		t.Errorf("rejected block = %q", rejected)
	}
	if last := payload.Blocks[len(payload.Blocks)-1]; last.Type != "divider" {
		t.Errorf("last block type = %q, want divider", last.Type)
	}
}

func TestSlackNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), zerolog.Nop())
	if err := n.Notify(sampleReport()); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestSlackNotifier_RateLimitRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), zerolog.Nop())
	if err := n.Notify(sampleReport()); err != nil {
		t.Fatalf("Notify() = %v, want nil after retry", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 calls, got %d", c)
	}
}

func TestBuildPayload_CapsBlocks(t *testing.T) {
	r := &model.Report{}
	for i := 0; i < 80; i++ {
		r.Entries = append(r.Entries, model.ReportEntry{Title: "x", Result: "ok"})
	}
	if n := len(buildPayload(r).Blocks); n > slackBlockLimit {
		t.Errorf("payload has %d blocks, limit is %d", n, slackBlockLimit)
	}
}
