package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// LocalEngine is the built-in delegate used when no external engine is
// configured. It walks a job through RUNNING and COMPLETED with a summary
// result, which keeps the full lifecycle exercisable end to end.
type LocalEngine struct {
	reporter     Reporter
	defaultModel string
}

// NewLocalEngine creates a local engine reporting through the given reporter.
func NewLocalEngine(reporter Reporter, defaultModel string) *LocalEngine {
	return &LocalEngine{reporter: reporter, defaultModel: defaultModel}
}

// RunCrew executes a crew job locally.
func (e *LocalEngine) RunCrew(ctx context.Context, cfg JobConfig) error {
	return e.run(ctx, cfg, "crew")
}

// RunFlow executes a flow job locally.
func (e *LocalEngine) RunFlow(ctx context.Context, cfg JobConfig) error {
	return e.run(ctx, cfg, "flow")
}

func (e *LocalEngine) run(ctx context.Context, cfg JobConfig, kind string) error {
	if !e.reporter.ReportStatus(ctx, cfg.JobID, "RUNNING", "", nil) {
		return fmt.Errorf("marking job %s running", cfg.JobID)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("job %s interrupted: %w", cfg.JobID, err)
	}

	model := cfg.Model
	if model == "" {
		model = e.defaultModel
	}

	result := map[string]any{
		"kind":     kind,
		"run_name": cfg.RunName,
		"model":    model,
		"planning": cfg.Planning,
		"inputs":   len(cfg.Inputs),
	}

	if !e.reporter.ReportStatus(ctx, cfg.JobID, "COMPLETED", "", result) {
		return fmt.Errorf("marking job %s completed", cfg.JobID)
	}

	log.Debug().
		Str("job_id", cfg.JobID).
		Str("kind", kind).
		Str("model", model).
		Msg("Local engine finished job")

	return nil
}
