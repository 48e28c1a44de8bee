// Package jobs turns a configuration into sign-in jobs and guards them with
// the freshness check before dispatch.
package jobs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amishk599/autosignin/internal/config"
	"github.com/amishk599/autosignin/internal/model"
)

// DateLayout is the date format embedded in job titles.
const DateLayout = "2006-01-02"

// Resolver looks up the site for an ID.
type Resolver interface {
	Resolve(siteID string) (model.Site, error)
}

// Title returns the job title for siteID on the day of now.
func Title(siteID string, now time.Time) string {
	return fmt.Sprintf("%s %s", siteID, now.Format(DateLayout))
}

// Build creates one job per (site, account config) pair in cfg.Sites, in
// site ID order. Each job is handed to its site's BuildSignInEntry hook. An
// unknown site or a failing hook aborts the whole build.
func Build(cfg *config.Config, sites Resolver, now func() time.Time) ([]*model.Job, error) {
	ids := make([]string, 0, len(cfg.Sites))
	for id := range cfg.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	today := now()
	var jobs []*model.Job
	for _, id := range ids {
		site, err := sites.Resolve(id)
		if err != nil {
			return nil, err
		}
		for _, account := range accounts(cfg.Sites[id]) {
			job := model.NewJob(id, account, Title(id, today))
			if err := site.BuildSignInEntry(job, cfg); err != nil {
				return nil, &model.EntryBuildError{SiteID: id, Err: err}
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// accounts normalizes a site value to a list: a bare config becomes a
// one-element list.
func accounts(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	if list, ok := v.([]map[string]any); ok {
		out := make([]any, len(list))
		for i, m := range list {
			out[i] = m
		}
		return out
	}
	return []any{v}
}

// Gate splits jobs into those stamped with today's date and those that are
// stale. Today is taken from now at call time, not from when the jobs were
// built. Stale jobs are marked rejected.
func Gate(jobs []*model.Job, now func() time.Time) (accepted, rejected []*model.Job) {
	today := now().Format(DateLayout)
	for _, job := range jobs {
		if !strings.Contains(job.Title, today) {
			job.Reject(fmt.Sprintf("%s out of date!", job.Title))
			rejected = append(rejected, job)
			continue
		}
		accepted = append(accepted, job)
	}
	return accepted, rejected
}
