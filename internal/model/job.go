package model

import "fmt"

// Stage names the step of the sign-in protocol a job is currently in.
// Failure reasons are prefixed with it.
type Stage string

const (
	StageSignIn   Stage = "Sign_in"
	StageMessages Stage = "Messages"
	StageDetails  Stage = "Details"
)

// Job is one scheduled unit of work for one (site, account config) pair.
// A job is touched by exactly one worker at a time and needs no locking.
type Job struct {
	SiteID  string // which registered site handles this job
	Account any    // opaque per-account config, handler-specific
	Title   string // "{siteID} {YYYY-MM-DD}", doubles as the freshness token

	Result   string
	Messages string
	Details  string

	// Extra holds handler-specific fields set while building the entry (cookie, url, ...).
	Extra map[string]any
	// Scratch is transient page content a handler may keep between stages.
	Scratch string

	prefix       Stage
	failed       bool
	reason       string
	rejected     bool
	rejectReason string
}

// NewJob returns an empty, non-failed job for siteID.
func NewJob(siteID string, account any, title string) *Job {
	return &Job{
		SiteID:  siteID,
		Account: account,
		Title:   title,
		Extra:   make(map[string]any),
	}
}

// SetPrefix marks the stage the job is entering.
func (j *Job) SetPrefix(s Stage) { j.prefix = s }

// Prefix returns the current stage, empty once the job is done.
func (j *Job) Prefix() Stage { return j.prefix }

// Fail marks the job failed with reason prefixed by the current stage.
// Only the first call has an effect; a failed job never recovers.
func (j *Job) Fail(reason string) {
	if j.failed {
		return
	}
	j.failed = true
	if j.prefix != "" {
		j.reason = fmt.Sprintf("%s=> %s", j.prefix, reason)
	} else {
		j.reason = reason
	}
}

// Failf is Fail with formatting.
func (j *Job) Failf(format string, args ...any) {
	j.Fail(fmt.Sprintf(format, args...))
}

// Failed reports whether any stage has failed the job.
func (j *Job) Failed() bool { return j.failed }

// Reason returns the stage-prefixed failure reason.
func (j *Job) Reason() string { return j.reason }

// Reject marks the job as refused before dispatch.
func (j *Job) Reject(reason string) {
	if j.rejected {
		return
	}
	j.rejected = true
	j.rejectReason = reason
}

// Rejected reports whether the job was refused before dispatch.
func (j *Job) Rejected() bool { return j.rejected }

// RejectReason returns the reason given to Reject.
func (j *Job) RejectReason() string { return j.rejectReason }

// ClearTransient drops fields that only live for the duration of one execution.
func (j *Job) ClearTransient() {
	j.prefix = ""
	j.Scratch = ""
}

// ExtraString returns Extra[key] as a string, or "" if absent or not a string.
func (j *Job) ExtraString(key string) string {
	s, _ := j.Extra[key].(string)
	return s
}
