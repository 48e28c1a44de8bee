package report

import (
	"strings"
	"testing"
	"time"

	"github.com/amishk599/autosignin/internal/engine"
	"github.com/amishk599/autosignin/internal/model"
)

func sampleOutcome() *engine.Outcome {
	ok := model.NewJob("siteA", nil, "siteA 2026-10-17")
	ok.Result = "这是您的第 3 次签到"
	ok.Messages = "1 unread: welcome"
	ok.Details = "ratio: 2.5"

	bad := model.NewJob("siteB", nil, "siteB 2026-10-17")
	bad.SetPrefix(model.StageMessages)
	bad.Fail("cookie expired")

	stale := model.NewJob("siteC", nil, "siteC 2026-10-16")
	stale.Reject("siteC 2026-10-16 out of date!")

	return &engine.Outcome{Accepted: []*model.Job{ok, bad}, Rejected: []*model.Job{stale}}
}

func TestBuild(t *testing.T) {
	started := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	out := sampleOutcome()

	r := Build("run-1", started, started.Add(3*time.Second), out)

	if r.RunID != "run-1" || len(r.Entries) != 2 || len(r.Rejected) != 1 {
		t.Fatalf("report = %+v", r)
	}
	if r.Succeeded() != 1 || r.FailedCount() != 1 {
		t.Errorf("succeeded=%d failed=%d, want 1/1", r.Succeeded(), r.FailedCount())
	}
	if r.Entries[1].Reason != "Messages=> cookie expired" {
		t.Errorf("Reason = %q", r.Entries[1].Reason)
	}
	if r.Rejected[0].Reason != "siteC 2026-10-16 out of date!" {
		t.Errorf("rejected reason = %q", r.Rejected[0].Reason)
	}

	// Building the report must not touch the jobs.
	if out.Accepted[0].Failed() || out.Accepted[0].Result == "" {
		t.Error("Build mutated a job")
	}
}

func TestBuild_NilOutcome(t *testing.T) {
	r := Build("run-2", time.Now(), time.Now(), nil)
	if len(r.Entries) != 0 || r.Succeeded() != 0 {
		t.Errorf("report = %+v, want empty", r)
	}
}

func TestRender(t *testing.T) {
	started := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	r := Build("run-1", started, started.Add(1500*time.Millisecond), sampleOutcome())

	out := Render(r)
	for _, want := range []string{
		"SITE", "siteA 2026-10-17", "ok", "ratio: 2.5",
		"Messages=> cookie expired", "rejected", "out of date!",
		"1 succeeded, 1 failed, 1 rejected in 1.5s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render output missing %q:\n%s", want, out)
		}
	}
}

func TestSummary(t *testing.T) {
	r := Build("run-1", time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC), time.Time{}, sampleOutcome())

	got := Summary(r)
	want := strings.Join([]string{
		"Sign-in report 2026-10-17 09:00: 1 succeeded, 1 failed, 1 rejected",
		"✓ siteA 2026-10-17: 这是您的第 3 次签到",
		"    messages: 1 unread: welcome",
		"    details: ratio: 2.5",
		"✗ siteB 2026-10-17: Messages=> cookie expired",
		"- siteC 2026-10-16 out of date!",
	}, "\n")
	if got != want {
		t.Errorf("Summary =\n%s\nwant\n%s", got, want)
	}
}
