package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/halvard/coxswain/internal/engine"
	"github.com/halvard/coxswain/internal/executions"
	"github.com/halvard/coxswain/internal/metrics"
)

// Poller drives schedules to executions. Every tick it reaps finished tasks,
// takes one UTC time snapshot, dispatches every due schedule exactly once,
// and advances next_run_at before the tick ends so the same cron slot cannot
// fire twice. Tick failures are logged and absorbed; only Shutdown stops the
// loop.
type Poller struct {
	store      *Store
	status     *executions.StatusService
	runner     *executions.Runner
	supervisor *executions.Supervisor

	grace  time.Duration
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PollerConfig holds configuration for the poller.
type PollerConfig struct {
	// PollInterval is how often to look for due schedules (default: 60s).
	PollInterval time.Duration

	// ShutdownGrace bounds how long Shutdown waits for in-flight runs.
	ShutdownGrace time.Duration
}

// NewPoller creates a poller over the given stores and dispatch machinery.
func NewPoller(store *Store, status *executions.StatusService, runner *executions.Runner, supervisor *executions.Supervisor) *Poller {
	ctx, cancel := context.WithCancel(context.Background())

	return &Poller{
		store:      store,
		status:     status,
		runner:     runner,
		supervisor: supervisor,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins background polling.
func (p *Poller) Start(cfg *PollerConfig) {
	if cfg == nil {
		cfg = &PollerConfig{}
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	p.grace = cfg.ShutdownGrace

	p.wg.Add(1)
	go p.pollLoop(cfg.PollInterval)

	log.Info().
		Dur("poll_interval", cfg.PollInterval).
		Msg("Schedule poller started")
}

// Shutdown stops polling, then cancels and drains in-flight executions with
// a bounded grace period.
func (p *Poller) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.supervisor.Shutdown(p.grace)
	log.Info().Msg("Schedule poller stopped")
}

func (p *Poller) pollLoop(interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.Tick(p.ctx); err != nil {
			metrics.RecordTickError()
			log.Error().Err(err).Msg("Poll tick failed")
		}

		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one poll cycle against a single time snapshot.
func (p *Poller) Tick(ctx context.Context) error {
	metrics.RecordTick()

	for _, finished := range p.supervisor.Prune() {
		if finished.Err != nil {
			log.Error().
				Err(finished.Err).
				Str("task", finished.Name).
				Str("job_id", finished.JobID).
				Msg("Scheduled execution finished with error")
		}
	}

	now := time.Now().UTC()

	schedules, err := p.store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}

	var due []*Schedule
	for _, schedule := range schedules {
		log.Debug().
			Int64("schedule_id", schedule.ID).
			Str("name", schedule.Name).
			Bool("active", schedule.IsActive).
			Interface("next_run_at", schedule.NextRunAt).
			Msg("Schedule status")

		if schedule.IsDue(now) {
			due = append(due, schedule)
		}
	}

	if len(due) > 0 {
		log.Info().Int("due", len(due)).Time("now", now).Msg("Dispatching due schedules")
	}

	for _, schedule := range due {
		if err := p.dispatch(ctx, schedule, now); err != nil {
			log.Error().
				Err(err).
				Int64("schedule_id", schedule.ID).
				Str("name", schedule.Name).
				Msg("Failed to dispatch schedule")
		}
	}

	return nil
}

// dispatch fires one scheduled run and advances next_run_at in the same
// tick. The dispatched task finishes by re-stamping the schedule through
// UpdateAfterExecution, a deliberate second writer that re-derives the same
// cron slot.
func (p *Poller) dispatch(ctx context.Context, schedule *Schedule, now time.Time) error {
	jobID := uuid.New().String()
	runName := executions.GenerateRunName()

	cfg := engine.JobConfig{
		JobID:      jobID,
		RunName:    runName,
		AgentsYAML: schedule.AgentsYAML,
		TasksYAML:  schedule.TasksYAML,
		Inputs:     copyInputs(schedule.Inputs),
		Planning:   schedule.Planning,
		Model:      schedule.Model,
	}

	inputsJSON := ""
	if len(cfg.Inputs) > 0 {
		if data, err := json.Marshal(cfg.Inputs); err == nil {
			inputsJSON = string(data)
		}
	}

	scheduleID := schedule.ID
	triggerID := fmt.Sprintf("%d", scheduleID)

	p.supervisor.Dispatch(schedule.Name, jobID, func(taskCtx context.Context) error {
		record := &executions.Execution{
			JobID:       jobID,
			Status:      executions.StatusPending,
			RunName:     runName,
			Kind:        executions.KindCrew,
			TriggerType: executions.TriggerScheduled,
			TriggerID:   triggerID,
			Inputs:      inputsJSON,
		}
		if !p.status.CreateExecution(taskCtx, record) {
			return fmt.Errorf("creating execution record for job %s", jobID)
		}

		runErr := p.runner.Run(taskCtx, executions.KindCrew, cfg)

		if err := p.store.UpdateAfterExecution(taskCtx, scheduleID, time.Now().UTC()); err != nil {
			log.Error().
				Err(err).
				Int64("schedule_id", scheduleID).
				Msg("Failed to update schedule after execution")
		}

		return runErr
	})

	metrics.RecordDispatch()

	log.Info().
		Int64("schedule_id", schedule.ID).
		Str("name", schedule.Name).
		Str("job_id", jobID).
		Str("run_name", runName).
		Msg("Scheduled execution dispatched")

	if err := p.store.AdvanceNextRun(ctx, schedule, now); err != nil {
		return fmt.Errorf("advancing next_run_at: %w", err)
	}

	return nil
}

func copyInputs(inputs map[string]any) map[string]any {
	if inputs == nil {
		return nil
	}
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = v
	}
	return out
}
