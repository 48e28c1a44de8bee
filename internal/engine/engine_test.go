package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/jobs"
	"github.com/amishk599/autosignin/internal/logx"
	"github.com/amishk599/autosignin/internal/model"
	"github.com/amishk599/autosignin/internal/registry"
)

// --- Fakes ---

type stageFunc func(ctx context.Context, job *model.Job) error

// scriptedSite hands out handlers whose stages run the given funcs and count
// their invocations.
type scriptedSite struct {
	id       string
	signIn   stageFunc
	messages stageFunc
	details  stageFunc

	signIns  atomic.Int32
	msgCalls atomic.Int32
	detCalls atomic.Int32
	handlers atomic.Int32
}

func (s *scriptedSite) ID() string                       { return s.id }
func (s *scriptedSite) Capabilities() model.Capabilities { return model.Capabilities{} }
func (s *scriptedSite) SignInSchema() model.Schema       { return model.Schema{s.id: true} }
func (s *scriptedSite) ReseedSchema() model.Schema       { return nil }

func (s *scriptedSite) BuildSignInEntry(*model.Job, *config.Config) error { return nil }

func (s *scriptedSite) BuildReseedEntry(*model.Job, *config.Config, string, string, string) error {
	return nil
}

func (s *scriptedSite) NewHandler() model.Handler {
	s.handlers.Add(1)
	return &scriptedHandler{site: s}
}

type scriptedHandler struct {
	site *scriptedSite
}

func (h *scriptedHandler) SignIn(ctx context.Context, job *model.Job, _ *config.Config) error {
	h.site.signIns.Add(1)
	return call(h.site.signIn, ctx, job)
}

func (h *scriptedHandler) GetMessages(ctx context.Context, job *model.Job, _ *config.Config) error {
	h.site.msgCalls.Add(1)
	return call(h.site.messages, ctx, job)
}

func (h *scriptedHandler) GetDetails(ctx context.Context, job *model.Job, _ *config.Config) error {
	h.site.detCalls.Add(1)
	return call(h.site.details, ctx, job)
}

func call(fn stageFunc, ctx context.Context, job *model.Job) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, job)
}

// --- Helpers ---

var today = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return today }

func newRegistry(t *testing.T, sites ...model.Site) *registry.Registry {
	t.Helper()
	r := registry.New(nil)
	if err := r.Register(sites...); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r
}

func defaultConfig() *config.Config {
	return &config.Config{MaxWorkers: 1, GetMessages: true, GetDetails: true}
}

func freshJob(siteID string) *model.Job {
	return model.NewJob(siteID, nil, jobs.Title(siteID, today))
}

func newLogs(t *testing.T) (*logx.Service, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")
	file := &bytes.Buffer{}
	return logx.New("debug", logx.Sink{Name: "file", Writer: file, File: true}), file
}

// --- Tests ---

func TestRun_AllStagesInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []model.Stage
	record := func(ctx context.Context, job *model.Job) error {
		mu.Lock()
		order = append(order, job.Prefix())
		mu.Unlock()
		return nil
	}
	site := &scriptedSite{id: "siteA", signIn: record, messages: record, details: record}
	e := New(newRegistry(t, site), nil, WithClock(clock))

	job := freshJob("siteA")
	out := e.Run(context.Background(), []*model.Job{job}, defaultConfig())

	want := []model.Stage{model.StageSignIn, model.StageMessages, model.StageDetails}
	if len(order) != len(want) {
		t.Fatalf("stages = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, order[i], want[i])
		}
	}
	if len(out.Accepted) != 1 || job.Failed() {
		t.Errorf("job should be accepted and not failed: %+v", out)
	}
	if job.Prefix() != "" {
		t.Errorf("prefix should be cleared after the job, got %q", job.Prefix())
	}
}

func TestRun_StaleJobNeverReachesHandler(t *testing.T) {
	site := &scriptedSite{id: "siteA"}
	e := New(newRegistry(t, site), nil, WithClock(clock))

	stale := model.NewJob("siteA", nil, jobs.Title("siteA", today.AddDate(0, 0, -1)))
	out := e.Run(context.Background(), []*model.Job{stale}, defaultConfig())

	if len(out.Accepted) != 0 || len(out.Rejected) != 1 {
		t.Fatalf("accepted=%d rejected=%d, want 0/1", len(out.Accepted), len(out.Rejected))
	}
	if site.handlers.Load() != 0 || site.signIns.Load() != 0 {
		t.Error("stale job must not invoke any handler method")
	}
	reason := stale.RejectReason()
	if !strings.Contains(reason, stale.Title) || !strings.Contains(reason, "out of date") {
		t.Errorf("RejectReason() = %q, want title and 'out of date'", reason)
	}
}

func TestRun_SignInFailureStopsJob(t *testing.T) {
	site := &scriptedSite{
		id: "siteA",
		signIn: func(_ context.Context, job *model.Job) error {
			job.Fail("cookie expired")
			return nil
		},
	}
	e := New(newRegistry(t, site), nil, WithClock(clock))

	job := freshJob("siteA")
	e.Run(context.Background(), []*model.Job{job}, defaultConfig())

	if site.msgCalls.Load() != 0 || site.detCalls.Load() != 0 {
		t.Errorf("later stages ran after sign-in failure: messages=%d details=%d",
			site.msgCalls.Load(), site.detCalls.Load())
	}
	if want := "Sign_in=> cookie expired"; job.Reason() != want {
		t.Errorf("Reason() = %q, want %q", job.Reason(), want)
	}
}

func TestRun_MessagesDisabledStillRunsDetails(t *testing.T) {
	for _, signInFails := range []bool{false, true} {
		site := &scriptedSite{id: "siteA"}
		if signInFails {
			site.signIn = func(_ context.Context, job *model.Job) error {
				job.Fail("nope")
				return nil
			}
		}
		e := New(newRegistry(t, site), nil, WithClock(clock))
		cfg := defaultConfig()
		cfg.GetMessages = false

		e.Run(context.Background(), []*model.Job{freshJob("siteA")}, cfg)

		if site.msgCalls.Load() != 0 {
			t.Errorf("signInFails=%v: GetMessages called %d times with get_messages off", signInFails, site.msgCalls.Load())
		}
		wantDetails := int32(1)
		if signInFails {
			wantDetails = 0
		}
		if site.detCalls.Load() != wantDetails {
			t.Errorf("signInFails=%v: GetDetails called %d times, want %d", signInFails, site.detCalls.Load(), wantDetails)
		}
	}
}

func TestRun_DetailsDisabled(t *testing.T) {
	site := &scriptedSite{id: "siteA"}
	e := New(newRegistry(t, site), nil, WithClock(clock))
	cfg := defaultConfig()
	cfg.GetDetails = false

	e.Run(context.Background(), []*model.Job{freshJob("siteA")}, cfg)

	if site.msgCalls.Load() != 1 || site.detCalls.Load() != 0 {
		t.Errorf("messages=%d details=%d, want 1/0", site.msgCalls.Load(), site.detCalls.Load())
	}
}

func TestRun_ErrorsAndPanicsAreContained(t *testing.T) {
	tests := []struct {
		name       string
		site       *scriptedSite
		wantPrefix string
	}{
		{
			name: "error in messages",
			site: &scriptedSite{id: "siteA", messages: func(context.Context, *model.Job) error {
				return errors.New("connection reset")
			}},
			wantPrefix: "Messages=> Exception: connection reset",
		},
		{
			name: "panic in details",
			site: &scriptedSite{id: "siteA", details: func(context.Context, *model.Job) error {
				panic("index out of range")
			}},
			wantPrefix: "Details=> Exception: index out of range",
		},
		{
			name: "panic in sign-in",
			site: &scriptedSite{id: "siteA", signIn: func(context.Context, *model.Job) error {
				var m map[string]int
				m["x"] = 1
				return nil
			}},
			wantPrefix: "Sign_in=> Exception: assignment to entry in nil map",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			healthy := &scriptedSite{id: "siteB"}
			e := New(newRegistry(t, tt.site, healthy), nil, WithClock(clock))
			cfg := defaultConfig()
			cfg.MaxWorkers = 1

			bad, good := freshJob("siteA"), freshJob("siteB")
			e.Run(context.Background(), []*model.Job{bad, good}, cfg)

			if !bad.Failed() {
				t.Fatal("job should be failed")
			}
			if bad.Reason() != tt.wantPrefix {
				t.Errorf("Reason() = %q, want %q", bad.Reason(), tt.wantPrefix)
			}
			if good.Failed() || healthy.detCalls.Load() != 1 {
				t.Error("the pool should keep processing remaining jobs")
			}
		})
	}
}

func TestRun_FreshHandlerPerJob(t *testing.T) {
	site := &scriptedSite{id: "siteA"}
	e := New(newRegistry(t, site), nil, WithClock(clock))

	e.Run(context.Background(), []*model.Job{freshJob("siteA"), freshJob("siteA"), freshJob("siteA")}, defaultConfig())

	if site.handlers.Load() != 3 {
		t.Errorf("created %d handlers, want 3", site.handlers.Load())
	}
}

func TestRun_BoundedParallelism(t *testing.T) {
	var running, peak atomic.Int32
	slow := func(context.Context, *model.Job) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	}
	site := &scriptedSite{id: "siteA", signIn: slow}
	e := New(newRegistry(t, site), nil, WithClock(clock))
	cfg := defaultConfig()
	cfg.MaxWorkers = 2

	var all []*model.Job
	for i := 0; i < 6; i++ {
		all = append(all, freshJob("siteA"))
	}
	e.Run(context.Background(), all, cfg)

	if site.signIns.Load() != 6 {
		t.Fatalf("Run returned before all jobs finished: %d sign-ins", site.signIns.Load())
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestRun_WorkerLogsCapturedAndReplayed(t *testing.T) {
	logs, file := newLogs(t)
	emit := func(ctx context.Context, job *model.Job) error {
		log := zerolog.Ctx(ctx)
		for i := 0; i < 3; i++ {
			log.Info().Int("step", i).Str("title", job.Title).Msg("working")
		}
		job.Result = "signed in"
		return nil
	}
	siteA := &scriptedSite{id: "siteA", signIn: emit}
	siteB := &scriptedSite{id: "siteB", signIn: emit}
	e := New(newRegistry(t, siteA, siteB), logs, WithClock(clock))
	cfg := defaultConfig()
	cfg.MaxWorkers = 2

	e.Run(context.Background(), []*model.Job{freshJob("siteA"), freshJob("siteB")}, cfg)

	out := file.String()
	for _, want := range []string{"siteA 2026-10-17 signed in", "siteB 2026-10-17 signed in", `"worker":`} {
		if !strings.Contains(out, want) {
			t.Errorf("replayed log missing %q:\n%s", want, out)
		}
	}

	// Records for one job stay in emission order after replay.
	for _, title := range []string{"siteA 2026-10-17", "siteB 2026-10-17"} {
		next := 0
		for _, line := range strings.Split(out, "\n") {
			if !strings.Contains(line, `"title":"`+title+`"`) || !strings.Contains(line, `"step":`) {
				continue
			}
			if !strings.Contains(line, `"step":`+string(rune('0'+next))) {
				t.Fatalf("%s: expected step %d next, got %s", title, next, line)
			}
			next++
		}
		if next != 3 {
			t.Errorf("%s: replayed %d step records, want 3", title, next)
		}
	}

	// The service is back in steady state.
	file.Reset()
	after := logs.Logger()
	after.Info().Msg("after run")
	if !strings.Contains(file.String(), "after run") {
		t.Error("sinks should be re-attached after the run")
	}
}

func TestRun_EndToEnd(t *testing.T) {
	succeed := func(_ context.Context, job *model.Job) error {
		job.Result = "ok"
		return nil
	}
	siteA := &scriptedSite{id: "siteA", signIn: succeed}
	siteB := &scriptedSite{id: "siteB", signIn: succeed}
	reg := newRegistry(t, siteA, siteB)

	cfg := &config.Config{
		MaxWorkers:  2,
		GetMessages: true,
		GetDetails:  true,
		Sites: map[string]any{
			"siteA": map[string]any{},
			"siteB": []any{map[string]any{"acct": 1}, map[string]any{"acct": 2}},
		},
	}

	built, err := jobs.Build(cfg, reg, clock)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(built) != 3 {
		t.Fatalf("built %d jobs, want 3", len(built))
	}

	logs, _ := newLogs(t)
	out := New(reg, logs, WithClock(clock)).Run(context.Background(), built, cfg)

	if len(out.Accepted) != 3 || len(out.Rejected) != 0 {
		t.Fatalf("accepted=%d rejected=%d, want 3/0", len(out.Accepted), len(out.Rejected))
	}
	for _, job := range out.Accepted {
		if job.Failed() {
			t.Errorf("%s failed: %s", job.Title, job.Reason())
		}
		if job.Result != "ok" {
			t.Errorf("%s result = %q, want ok", job.Title, job.Result)
		}
	}
}

func TestRun_EndToEndStaleAtDispatch(t *testing.T) {
	siteA := &scriptedSite{id: "siteA"}
	reg := newRegistry(t, siteA)
	cfg := defaultConfig()
	cfg.Sites = map[string]any{"siteA": map[string]any{}}

	yesterday := func() time.Time { return today.AddDate(0, 0, -1) }
	built, err := jobs.Build(cfg, reg, yesterday)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	logs, file := newLogs(t)
	out := New(reg, logs, WithClock(clock)).Run(context.Background(), built, cfg)

	if len(out.Rejected) != 1 {
		t.Fatalf("rejected = %d, want 1", len(out.Rejected))
	}
	msg := out.Rejected[0].RejectReason()
	if !strings.Contains(msg, "siteA 2026-10-16") || !strings.Contains(msg, "out of date") {
		t.Errorf("RejectReason() = %q", msg)
	}
	if !strings.Contains(file.String(), "out of date") {
		t.Errorf("rejection should be logged, got %q", file.String())
	}
	if siteA.signIns.Load() != 0 {
		t.Error("stale job must not be signed in")
	}
}
