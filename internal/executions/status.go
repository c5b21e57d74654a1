package executions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/halvard/coxswain/internal/database"
	"github.com/halvard/coxswain/internal/metrics"
)

// EventSink receives execution status transitions for fan-out. Implemented by
// the realtime broker; a nil sink disables publishing.
type EventSink interface {
	PublishExecutionEvent(jobID, status, message string)
}

// StatusService owns every write to execution state. It keeps the durable
// store and the in-memory registry in step, and it never lets a failure
// escape to the caller: every operation reports success as a bool.
type StatusService struct {
	store    *Store
	registry *Registry
	events   EventSink
}

// NewStatusService creates a status service over the given store and registry.
func NewStatusService(store *Store, registry *Registry) *StatusService {
	return &StatusService{store: store, registry: registry}
}

// SetEventSink wires a realtime sink. Safe to leave unset.
func (s *StatusService) SetEventSink(sink EventSink) {
	s.events = sink
}

// Registry exposes the advisory in-memory view.
func (s *StatusService) Registry() *Registry {
	return s.registry
}

// CreateExecution records a new execution. A duplicate job ID is treated as
// an already-satisfied request: it logs and reports success without writing.
func (s *StatusService) CreateExecution(ctx context.Context, exec *Execution) (ok bool) {
	defer s.recoverTo(&ok, exec.JobID, "create")

	if err := s.store.Create(ctx, exec); err != nil {
		if database.IsUniqueError(err) {
			log.Info().
				Str("job_id", exec.JobID).
				Msg("Execution already recorded, skipping create")
			return true
		}
		log.Error().
			Err(err).
			Str("job_id", exec.JobID).
			Msg("Failed to create execution record")
		return false
	}

	s.registry.Set(exec.JobID, exec.Status, exec.RunName)
	metrics.RecordTransition(string(exec.Status))
	s.publish(exec.JobID, exec.Status, "")

	log.Debug().
		Str("job_id", exec.JobID).
		Str("run_name", exec.RunName).
		Str("status", string(exec.Status)).
		Msg("Execution created")

	return true
}

// UpdateStatus transitions an execution to a new status. Terminal states are
// absorbing: once COMPLETED, FAILED or CANCELLED, further transitions are
// refused. The terminal transition stamps completed_at exactly once.
func (s *StatusService) UpdateStatus(ctx context.Context, jobID string, status Status, message string, result any) (ok bool) {
	defer s.recoverTo(&ok, jobID, "update")

	if !status.IsValid() {
		log.Warn().
			Str("job_id", jobID).
			Str("status", string(status)).
			Msg("Rejecting unknown execution status")
		return false
	}

	existing, err := s.store.GetByJobID(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to load execution for update")
		return false
	}
	if existing == nil {
		log.Warn().
			Str("job_id", jobID).
			Str("status", string(status)).
			Msg("Status update for unknown execution")
		return false
	}

	if existing.Status.IsTerminal() {
		log.Warn().
			Str("job_id", jobID).
			Str("current", string(existing.Status)).
			Str("requested", string(status)).
			Msg("Refusing transition out of terminal status")
		return false
	}

	upd := Update{Status: &status}

	if message != "" && (status == StatusFailed || status == StatusCancelled) {
		upd.Error = &message
	}

	if result != nil {
		payload := marshalResult(result)
		upd.Result = &payload
	}

	if status.IsTerminal() {
		now := time.Now().UTC()
		upd.CompletedAt = &now
	}

	updated, err := s.store.UpdateByJobID(ctx, jobID, upd)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to persist status update")
		return false
	}
	if updated == nil {
		log.Warn().Str("job_id", jobID).Msg("Execution vanished during status update")
		return false
	}

	s.registry.Set(jobID, status, updated.RunName)
	metrics.RecordTransition(string(status))
	s.publish(jobID, status, message)

	log.Debug().
		Str("job_id", jobID).
		Str("status", string(status)).
		Msg("Execution status updated")

	return true
}

// GetStatus returns the durable record for a job. The advisory registry
// entry answers when the store has nothing or the store itself is down.
func (s *StatusService) GetStatus(ctx context.Context, jobID string) *Execution {
	exec, err := s.store.GetByJobID(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to load execution, serving registry view")
	} else if exec != nil {
		return exec
	}

	if entry := s.registry.Get(jobID); entry != nil {
		return entry.asExecution()
	}

	return nil
}

// List returns durable records merged with registry-only entries. Store rows
// win on conflict; registry entries only fill gaps left by failed writes.
// When the store query itself fails the registry serves the whole list, so
// callers still see this process's executions while the database is down.
func (s *StatusService) List(ctx context.Context, opts ListOptions) ([]*Execution, int, error) {
	execs, total, err := s.store.List(ctx, opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list executions, serving registry view")
		return s.listFromRegistry(opts)
	}

	seen := make(map[string]bool, len(execs))
	for _, exec := range execs {
		seen[exec.JobID] = true
	}

	for _, entry := range s.registry.Snapshot() {
		if seen[entry.JobID] {
			continue
		}
		if !registryEntryMatches(entry, opts) {
			continue
		}
		// A durable row outside the requested page is not a gap; only
		// entries the store has never seen are merged in.
		if durable, err := s.store.GetByJobID(ctx, entry.JobID); err != nil || durable != nil {
			continue
		}
		execs = append(execs, entry.asExecution())
		total++
	}

	return execs, total, nil
}

func (s *StatusService) listFromRegistry(opts ListOptions) ([]*Execution, int, error) {
	var execs []*Execution
	for _, entry := range s.registry.Snapshot() {
		if !registryEntryMatches(entry, opts) {
			continue
		}
		execs = append(execs, entry.asExecution())
	}

	sort.Slice(execs, func(i, j int) bool {
		return execs[i].CreatedAt.After(execs[j].CreatedAt)
	})

	total := len(execs)
	if opts.Offset > 0 {
		if opts.Offset >= len(execs) {
			execs = nil
		} else {
			execs = execs[opts.Offset:]
		}
	}
	if opts.Limit > 0 && len(execs) > opts.Limit {
		execs = execs[:opts.Limit]
	}

	return execs, total, nil
}

// registryEntryMatches applies list filters to an advisory entry. The
// registry carries no trigger metadata, so any trigger or kind filter
// excludes it.
func registryEntryMatches(entry *RegistryEntry, opts ListOptions) bool {
	if opts.Status != "" && entry.Status != opts.Status {
		return false
	}
	if opts.Kind != "" || opts.TriggerType != "" || opts.TriggerID != "" {
		return false
	}
	return true
}

// ReportStatus adapts UpdateStatus for callers that carry statuses as plain
// strings, such as the execution engine.
func (s *StatusService) ReportStatus(ctx context.Context, jobID, status, message string, result any) bool {
	return s.UpdateStatus(ctx, jobID, Status(status), message, result)
}

func (s *StatusService) publish(jobID string, status Status, message string) {
	if s.events == nil {
		return
	}
	s.events.PublishExecutionEvent(jobID, string(status), message)
}

func (s *StatusService) recoverTo(ok *bool, jobID, op string) {
	if r := recover(); r != nil {
		log.Error().
			Interface("panic", r).
			Str("job_id", jobID).
			Str("op", op).
			Msg("Panic in status service")
		*ok = false
	}
}

// marshalResult renders a result payload as JSON, falling back to a plain
// string rendering for values json cannot handle.
func marshalResult(result any) string {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}
