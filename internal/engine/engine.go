// Package engine defines the delegate that performs the actual agent work.
// Coxswain owns scheduling and lifecycle bookkeeping; everything between
// RUNNING and the terminal status belongs to an Engine implementation.
package engine

import "context"

// JobConfig carries everything an engine needs to execute one job.
type JobConfig struct {
	JobID      string
	RunName    string
	AgentsYAML string
	TasksYAML  string
	Inputs     map[string]any
	Planning   bool
	Model      string
}

// Engine executes crew and flow jobs. Implementations own the RUNNING
// transition and the happy-path terminal transition; a returned error tells
// the runner to mark the job FAILED.
type Engine interface {
	RunCrew(ctx context.Context, cfg JobConfig) error
	RunFlow(ctx context.Context, cfg JobConfig) error
}

// Reporter is the slice of the status service an engine needs to move a job
// through its lifecycle.
type Reporter interface {
	ReportStatus(ctx context.Context, jobID, status, message string, result any) bool
}
