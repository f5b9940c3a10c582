// Package types provides type definitions for structured data shared across the autoapply client.
package types

import "fmt"

// RunStatus is the lifecycle status of a run as reported by the run service.
// The client observes these values; it never assigns them.
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunError   RunStatus = "error"
)

// Terminal reports whether no further status changes can occur for the run.
func (s RunStatus) Terminal() bool {
	return s == RunDone || s == RunError
}

// Active reports whether the run is still being processed by the service.
func (s RunStatus) Active() bool {
	return s == RunPending || s == RunRunning
}

// AppStatus is the per-application status, distinct from the run status.
type AppStatus string

const (
	AppPending    AppStatus = "pending"
	AppScoring    AppStatus = "scoring"
	AppGenerating AppStatus = "generating"
	AppApplying   AppStatus = "applying"
	AppSuccess    AppStatus = "success"
	AppFailure    AppStatus = "failure"
)

// RunCounts summarizes the outcome of a finished run.
type RunCounts struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Run is the run record inside a snapshot. Timestamps are epoch milliseconds.
type Run struct {
	RunID     string     `json:"runId"`
	UserID    string     `json:"userId"`
	Status    RunStatus  `json:"status"`
	StartedAt *int64     `json:"started_at,omitempty"`
	EndedAt   *int64     `json:"ended_at,omitempty"`
	Counts    *RunCounts `json:"counts,omitempty"`
}

// StartedAtMillis returns the run's start time, or 0 when the service never
// reported one. A zero start time makes a pending run stale immediately.
func (r *Run) StartedAtMillis() int64 {
	if r.StartedAt == nil {
		return 0
	}
	return *r.StartedAt
}

// ApplicationItem is one job application tracked within a run.
type ApplicationItem struct {
	JobID      string    `json:"jobId"`
	Title      string    `json:"title"`
	Company    string    `json:"company"`
	Status     AppStatus `json:"status"`
	MatchScore *float64  `json:"match_score,omitempty"`
	UpdatedAt  *int64    `json:"updatedAt,omitempty"`
	Error      string    `json:"error,omitempty"`
	Summary    string    `json:"summary,omitempty"`
}

// RunSnapshot is the full reported state of one run plus its applications,
// as of one status query. A snapshot is immutable once received: holders
// replace the whole snapshot, they never merge into it.
type RunSnapshot struct {
	Run          Run               `json:"run"`
	Applications []ApplicationItem `json:"applications"`
}

// Validate checks the snapshot's structural invariant: application entries
// are keyed by job id and a job id appears at most once.
func (s *RunSnapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Applications))
	for _, app := range s.Applications {
		if app.JobID == "" {
			return fmt.Errorf("snapshot for run %s contains an application without a job id", s.Run.RunID)
		}
		if _, dup := seen[app.JobID]; dup {
			return fmt.Errorf("snapshot for run %s contains duplicate job id %s", s.Run.RunID, app.JobID)
		}
		seen[app.JobID] = struct{}{}
	}
	return nil
}
