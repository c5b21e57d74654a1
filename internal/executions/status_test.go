package executions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type capturedEvent struct {
	JobID   string
	Status  string
	Message string
}

type captureSink struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (s *captureSink) PublishExecutionEvent(jobID, status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, capturedEvent{JobID: jobID, Status: status, Message: message})
}

func (s *captureSink) all() []capturedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capturedEvent(nil), s.events...)
}

func newStatusService(t *testing.T) (*StatusService, *Store, *captureSink) {
	t.Helper()

	store := NewStore(testDB(t))
	svc := NewStatusService(store, NewRegistry())
	sink := &captureSink{}
	svc.SetEventSink(sink)
	return svc, store, sink
}

func TestCreateExecution(t *testing.T) {
	svc, store, sink := newStatusService(t)
	ctx := context.Background()

	ok := svc.CreateExecution(ctx, &Execution{JobID: "job-1", RunName: "calm-anchor"})
	require.True(t, ok)

	found, err := store.GetByJobID(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, StatusPending, found.Status)

	entry := svc.Registry().Get("job-1")
	require.NotNil(t, entry)
	require.Equal(t, StatusPending, entry.Status)

	events := sink.all()
	require.Len(t, events, 1)
	require.Equal(t, "PENDING", events[0].Status)
}

func TestCreateExecutionDuplicateIsNoOp(t *testing.T) {
	svc, store, _ := newStatusService(t)
	ctx := context.Background()

	require.True(t, svc.CreateExecution(ctx, &Execution{JobID: "dup", RunName: "first"}))

	// A retried dispatch reports success without rewriting the record.
	require.True(t, svc.CreateExecution(ctx, &Execution{JobID: "dup", RunName: "second"}))

	found, err := store.GetByJobID(ctx, "dup")
	require.NoError(t, err)
	require.Equal(t, "first", found.RunName)

	_, total, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	svc, store, sink := newStatusService(t)
	ctx := context.Background()

	require.True(t, svc.CreateExecution(ctx, &Execution{JobID: "job-2"}))
	require.True(t, svc.UpdateStatus(ctx, "job-2", StatusPreparing, "", nil))
	require.True(t, svc.UpdateStatus(ctx, "job-2", StatusRunning, "", nil))
	require.True(t, svc.UpdateStatus(ctx, "job-2", StatusCompleted, "", map[string]any{"rows": 3}))

	found, err := store.GetByJobID(ctx, "job-2")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, found.Status)
	require.JSONEq(t, `{"rows":3}`, found.Result)
	require.NotNil(t, found.CompletedAt)

	statuses := make([]string, 0, 4)
	for _, ev := range sink.all() {
		statuses = append(statuses, ev.Status)
	}
	require.Equal(t, []string{"PENDING", "PREPARING", "RUNNING", "COMPLETED"}, statuses)
}

func TestUpdateStatusTerminalIsAbsorbing(t *testing.T) {
	svc, store, _ := newStatusService(t)
	ctx := context.Background()

	require.True(t, svc.CreateExecution(ctx, &Execution{JobID: "job-3"}))
	require.True(t, svc.UpdateStatus(ctx, "job-3", StatusFailed, "engine crashed", nil))

	settled, err := store.GetByJobID(ctx, "job-3")
	require.NoError(t, err)
	require.Equal(t, "engine crashed", settled.Error)
	require.NotNil(t, settled.CompletedAt)
	completedAt := *settled.CompletedAt

	// Late reports after settling change nothing, including completed_at.
	require.False(t, svc.UpdateStatus(ctx, "job-3", StatusRunning, "", nil))
	require.False(t, svc.UpdateStatus(ctx, "job-3", StatusCompleted, "", nil))

	after, err := store.GetByJobID(ctx, "job-3")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, after.Status)
	require.Equal(t, completedAt, *after.CompletedAt)
}

func TestUpdateStatusUnknownJob(t *testing.T) {
	svc, _, sink := newStatusService(t)

	require.False(t, svc.UpdateStatus(context.Background(), "ghost", StatusRunning, "", nil))
	require.Empty(t, sink.all())
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newStatusService(t)
	ctx := context.Background()

	require.True(t, svc.CreateExecution(ctx, &Execution{JobID: "job-4"}))
	require.False(t, svc.UpdateStatus(ctx, "job-4", Status("SIDEWAYS"), "", nil))
}

func TestUpdateStatusMessageOnlyStoredForFailures(t *testing.T) {
	svc, store, _ := newStatusService(t)
	ctx := context.Background()

	require.True(t, svc.CreateExecution(ctx, &Execution{JobID: "job-5"}))
	require.True(t, svc.UpdateStatus(ctx, "job-5", StatusRunning, "making progress", nil))

	found, err := store.GetByJobID(ctx, "job-5")
	require.NoError(t, err)
	require.Empty(t, found.Error)

	require.True(t, svc.UpdateStatus(ctx, "job-5", StatusCancelled, "operator stop", nil))

	found, err = store.GetByJobID(ctx, "job-5")
	require.NoError(t, err)
	require.Equal(t, "operator stop", found.Error)
}

func TestGetStatusFallsBackToRegistry(t *testing.T) {
	svc, _, _ := newStatusService(t)

	require.Nil(t, svc.GetStatus(context.Background(), "ghost"))

	svc.Registry().Set("memory-only", StatusRunning, "swift-current")

	exec := svc.GetStatus(context.Background(), "memory-only")
	require.NotNil(t, exec)
	require.Equal(t, StatusRunning, exec.Status)
	require.Equal(t, "swift-current", exec.RunName)
	require.Zero(t, exec.ID)
}

func TestListMergesRegistryEntries(t *testing.T) {
	svc, _, _ := newStatusService(t)
	ctx := context.Background()

	require.True(t, svc.CreateExecution(ctx, &Execution{JobID: "durable"}))
	svc.Registry().Set("memory-only", StatusRunning, "lone-buoy")

	execs, total, err := svc.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, total)

	jobIDs := make(map[string]bool, len(execs))
	for _, exec := range execs {
		jobIDs[exec.JobID] = true
	}
	require.True(t, jobIDs["durable"])
	require.True(t, jobIDs["memory-only"])

	// Field filters only apply to durable rows; registry entries carry no
	// trigger metadata and are skipped.
	_, total, err = svc.List(ctx, ListOptions{Kind: KindCrew})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestDegradedModeServesRegistry(t *testing.T) {
	db := testDB(t)
	svc := NewStatusService(NewStore(db), NewRegistry())
	ctx := context.Background()

	require.True(t, svc.CreateExecution(ctx, &Execution{JobID: "job-7", RunName: "steady-wake"}))
	require.True(t, svc.UpdateStatus(ctx, "job-7", StatusRunning, "", nil))

	// With the database gone, reads degrade to the in-memory view.
	require.NoError(t, db.Close())

	exec := svc.GetStatus(ctx, "job-7")
	require.NotNil(t, exec)
	require.Equal(t, StatusRunning, exec.Status)
	require.Equal(t, "steady-wake", exec.RunName)

	execs, total, err := svc.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, execs, 1)
	require.Equal(t, "job-7", execs[0].JobID)

	_, total, err = svc.List(ctx, ListOptions{Status: StatusRunning})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	// Filters the registry cannot evaluate exclude its entries.
	_, total, err = svc.List(ctx, ListOptions{Kind: KindCrew})
	require.NoError(t, err)
	require.Zero(t, total)

	execs, total, err = svc.List(ctx, ListOptions{Limit: 1, Offset: 5})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Empty(t, execs)
}

func TestReportStatusAdapter(t *testing.T) {
	svc, store, _ := newStatusService(t)
	ctx := context.Background()

	require.True(t, svc.CreateExecution(ctx, &Execution{JobID: "job-6"}))
	require.True(t, svc.ReportStatus(ctx, "job-6", "RUNNING", "", nil))
	require.False(t, svc.ReportStatus(ctx, "job-6", "nonsense", "", nil))

	found, err := store.GetByJobID(ctx, "job-6")
	require.NoError(t, err)
	require.Equal(t, StatusRunning, found.Status)
}

func TestRegistryEntriesExpireNothing(t *testing.T) {
	registry := NewRegistry()

	registry.Set("a", StatusPending, "one")
	first := registry.Get("a")
	require.NotNil(t, first)

	time.Sleep(5 * time.Millisecond)
	registry.Set("a", StatusRunning, "one")

	second := registry.Get("a")
	require.Equal(t, StatusRunning, second.Status)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.True(t, second.UpdatedAt.After(first.UpdatedAt) || second.UpdatedAt.Equal(first.UpdatedAt))
	require.Equal(t, 1, registry.Len())
}
