package executions

import "time"

// Status represents the lifecycle state of an execution.
type Status string

const (
	// StatusPending indicates the execution is recorded but not yet started.
	StatusPending Status = "PENDING"
	// StatusPreparing indicates the runner is assembling the job.
	StatusPreparing Status = "PREPARING"
	// StatusRunning indicates the engine is executing the job.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the execution finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the execution failed with an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the execution was cancelled.
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether the status allows no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether the status is one of the known lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusRunning,
		StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Kind distinguishes the two engine entry points.
type Kind string

const (
	KindCrew Kind = "crew"
	KindFlow Kind = "flow"
)

// TriggerType records what initiated an execution.
type TriggerType string

const (
	TriggerAPI       TriggerType = "api"
	TriggerScheduled TriggerType = "scheduled"
)

// Execution is the durable record of a single crew or flow run.
type Execution struct {
	ID          int64       // Internal row ID
	JobID       string      // Unique job identifier (UUID)
	Status      Status      // Current lifecycle state
	RunName     string      // Human-readable run name
	Kind        Kind        // crew or flow
	TriggerType TriggerType // api or scheduled
	TriggerID   string      // Schedule ID for scheduled runs
	Inputs      string      // Run inputs (JSON string)
	Result      string      // Terminal result payload (JSON string)
	Error       string      // Error message if failed
	CreatedAt   time.Time   // When the record was created
	UpdatedAt   time.Time   // When the record was last updated
	CompletedAt *time.Time  // Set exactly once, on the terminal transition
}
