package executions

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/halvard/coxswain/internal/engine"
)

// Runner walks a single execution through its lifecycle: PENDING to
// PREPARING, then hands the job to the engine, which owns RUNNING and the
// happy-path terminal transition. Delegate failures are contained here and
// recorded as FAILED; Run never panics.
type Runner struct {
	status *StatusService
	engine engine.Engine
}

// NewRunner creates a runner delegating to the given engine.
func NewRunner(status *StatusService, eng engine.Engine) *Runner {
	return &Runner{status: status, engine: eng}
}

// Run executes one job to a terminal state. The returned error reports what
// went wrong for supervision purposes; durable state is already settled by
// the time Run returns.
func (r *Runner) Run(ctx context.Context, kind Kind, cfg engine.JobConfig) error {
	exec := r.status.GetStatus(ctx, cfg.JobID)
	if exec == nil {
		log.Warn().
			Str("job_id", cfg.JobID).
			Msg("Running job without an execution record")
	} else if exec.Status != StatusPending {
		if exec.Status.IsTerminal() {
			return fmt.Errorf("job %s already settled as %s", cfg.JobID, exec.Status)
		}
		log.Warn().
			Str("job_id", cfg.JobID).
			Str("status", string(exec.Status)).
			Msg("Running job that is not pending")
	}

	r.status.UpdateStatus(ctx, cfg.JobID, StatusPreparing, "", nil)

	var err error
	switch kind {
	case KindFlow:
		err = r.engine.RunFlow(ctx, cfg)
	default:
		err = r.engine.RunCrew(ctx, cfg)
	}

	if err != nil {
		r.fail(ctx, cfg.JobID, err)
		return fmt.Errorf("running %s job %s: %w", kind, cfg.JobID, err)
	}

	return nil
}

func (r *Runner) fail(ctx context.Context, jobID string, cause error) {
	log.Error().
		Err(cause).
		Str("job_id", jobID).
		Msg("Execution failed")

	if !r.status.UpdateStatus(ctx, jobID, StatusFailed, cause.Error(), nil) {
		// The durable record now disagrees with reality and nothing further
		// can fix it from here.
		log.Error().
			Str("job_id", jobID).
			Msg("Could not record execution failure, stored status is stale")
	}
}
