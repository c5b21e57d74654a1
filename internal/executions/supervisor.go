package executions

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/halvard/coxswain/internal/metrics"
)

// TaskResult reports the outcome of a finished background task.
type TaskResult struct {
	Name  string
	JobID string
	Err   error
}

type task struct {
	name   string
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (t *task) setErr(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

func (t *task) getErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Supervisor runs executions as tracked goroutines. It recovers panics,
// writes a last-resort FAILED status when a task dies without settling its
// record, and supports draining everything with a bounded grace period.
type Supervisor struct {
	status  *StatusService
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*task
}

// NewSupervisor creates a supervisor reporting through the given status
// service.
func NewSupervisor(status *StatusService) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		status:  status,
		baseCtx: ctx,
		cancel:  cancel,
		tasks:   make(map[string]*task),
	}
}

// Dispatch starts fn as a supervised goroutine. The function receives a
// context cancelled on Shutdown. Dispatch returns immediately.
func (s *Supervisor) Dispatch(name, jobID string, fn func(ctx context.Context) error) {
	taskCtx, taskCancel := context.WithCancel(s.baseCtx)

	t := &task{
		name:   name,
		jobID:  jobID,
		cancel: taskCancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.tasks[jobID] = t
	inFlight := len(s.tasks)
	s.mu.Unlock()

	metrics.SetExecutionsInFlight(inFlight)

	log.Debug().
		Str("task", name).
		Str("job_id", jobID).
		Int("in_flight", inFlight).
		Msg("Dispatching background task")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)
		defer taskCancel()
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic: %v", r)
				t.setErr(err)
				log.Error().
					Interface("panic", r).
					Str("task", name).
					Str("job_id", jobID).
					Str("stack", string(debug.Stack())).
					Msg("Background task panicked")
				s.lastResortFail(jobID, err)
			}
		}()

		if err := fn(taskCtx); err != nil {
			t.setErr(err)
		}
	}()
}

// lastResortFail settles a record whose task died before reaching a terminal
// state. Runs on a fresh context because the task's own may be cancelled.
func (s *Supervisor) lastResortFail(jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exec := s.status.GetStatus(ctx, jobID)
	if exec == nil || exec.Status.IsTerminal() {
		return
	}

	s.status.UpdateStatus(ctx, jobID, StatusFailed, cause.Error(), nil)
}

// Prune removes finished tasks from the in-flight set and returns their
// outcomes. The poller calls this at the top of every tick.
func (s *Supervisor) Prune() []TaskResult {
	s.mu.Lock()

	var finished []TaskResult
	for jobID, t := range s.tasks {
		select {
		case <-t.done:
			finished = append(finished, TaskResult{Name: t.name, JobID: jobID, Err: t.getErr()})
			delete(s.tasks, jobID)
		default:
		}
	}
	inFlight := len(s.tasks)
	s.mu.Unlock()

	metrics.SetExecutionsInFlight(inFlight)
	return finished
}

// InFlight returns the number of tasks not yet pruned as finished.
func (s *Supervisor) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Wait blocks until every dispatched task finishes or the timeout expires.
// Returns false on timeout.
func (s *Supervisor) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Shutdown cancels every in-flight task and waits up to grace for them to
// unwind. Tasks still running after the grace period are abandoned.
func (s *Supervisor) Shutdown(grace time.Duration) {
	s.cancel()

	if !s.Wait(grace) {
		s.mu.Lock()
		remaining := len(s.tasks)
		s.mu.Unlock()
		log.Warn().
			Int("remaining", remaining).
			Dur("grace", grace).
			Msg("Supervisor shutdown grace expired with tasks still running")
		return
	}

	s.Prune()
	log.Info().Msg("Supervisor drained")
}
