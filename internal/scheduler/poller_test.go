package scheduler

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halvard/coxswain/internal/database"
	"github.com/halvard/coxswain/internal/engine"
	"github.com/halvard/coxswain/internal/executions"
)

type failingEngine struct{}

func (failingEngine) RunCrew(ctx context.Context, cfg engine.JobConfig) error {
	return errors.New("crew blew up")
}

func (failingEngine) RunFlow(ctx context.Context, cfg engine.JobConfig) error {
	return errors.New("flow blew up")
}

type pollerFixture struct {
	db         *database.DB
	schedules  *Store
	executions *executions.Store
	status     *executions.StatusService
	poller     *Poller
	supervisor *executions.Supervisor
}

func newPollerFixture(t *testing.T, eng engine.Engine) *pollerFixture {
	t.Helper()

	db := testDB(t)
	schedules := NewStore(db)
	execStore := executions.NewStore(db)
	status := executions.NewStatusService(execStore, executions.NewRegistry())
	if eng == nil {
		eng = engine.NewLocalEngine(status, "gpt-4o-mini")
	}
	runner := executions.NewRunner(status, eng)
	supervisor := executions.NewSupervisor(status)

	t.Cleanup(func() {
		supervisor.Shutdown(5 * time.Second)
	})

	return &pollerFixture{
		db:         db,
		schedules:  schedules,
		executions: execStore,
		status:     status,
		poller:     NewPoller(schedules, status, runner, supervisor),
		supervisor: supervisor,
	}
}

func (f *pollerFixture) createDue(t *testing.T, name string) *Schedule {
	t.Helper()

	schedule := testSchedule(name)
	past := time.Now().UTC().Add(-time.Minute)
	schedule.NextRunAt = &past
	require.NoError(t, f.schedules.Create(context.Background(), schedule))
	return schedule
}

func TestTickDispatchesDueSchedule(t *testing.T) {
	f := newPollerFixture(t, nil)
	ctx := context.Background()

	schedule := f.createDue(t, "tide-report")

	require.NoError(t, f.poller.Tick(ctx))
	require.True(t, f.supervisor.Wait(5*time.Second))

	execs, total, err := f.executions.List(ctx, executions.ListOptions{
		TriggerType: executions.TriggerScheduled,
		TriggerID:   strconv.FormatInt(schedule.ID, 10),
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, executions.StatusCompleted, execs[0].Status)
	require.NotEmpty(t, execs[0].JobID)
	require.NotEmpty(t, execs[0].RunName)
	require.NotNil(t, execs[0].CompletedAt)

	updated, err := f.schedules.FindByID(ctx, schedule.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastRunAt)
	require.True(t, updated.NextRunAt.After(time.Now().UTC()))
}

func TestTickDispatchesOncePerSlot(t *testing.T) {
	f := newPollerFixture(t, nil)
	ctx := context.Background()

	f.createDue(t, "once-only")

	require.NoError(t, f.poller.Tick(ctx))
	require.True(t, f.supervisor.Wait(5*time.Second))

	// next_run_at advanced in the dispatching tick, so an immediate second
	// tick finds nothing due.
	require.NoError(t, f.poller.Tick(ctx))
	require.True(t, f.supervisor.Wait(5*time.Second))

	_, total, err := f.executions.List(ctx, executions.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestTickSkipsInactiveAndFutureSchedules(t *testing.T) {
	f := newPollerFixture(t, nil)
	ctx := context.Background()

	inactive := f.createDue(t, "paused")
	_, err := f.schedules.ToggleActive(ctx, inactive.ID)
	require.NoError(t, err)

	require.NoError(t, f.schedules.Create(ctx, testSchedule("next-hour")))

	require.NoError(t, f.poller.Tick(ctx))
	require.True(t, f.supervisor.Wait(5*time.Second))

	_, total, err := f.executions.List(ctx, executions.ListOptions{})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestTickContainsEngineFailure(t *testing.T) {
	f := newPollerFixture(t, failingEngine{})
	ctx := context.Background()

	schedule := f.createDue(t, "doomed")

	require.NoError(t, f.poller.Tick(ctx))
	require.True(t, f.supervisor.Wait(5*time.Second))

	execs, total, err := f.executions.List(ctx, executions.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, executions.StatusFailed, execs[0].Status)
	require.Contains(t, execs[0].Error, "crew blew up")
	require.NotNil(t, execs[0].CompletedAt)

	// The failed run still advances the schedule.
	updated, err := f.schedules.FindByID(ctx, schedule.ID)
	require.NoError(t, err)
	require.True(t, updated.NextRunAt.After(time.Now().UTC()))

	// And the next tick reaps the failure without dying.
	require.NoError(t, f.poller.Tick(ctx))
}

func TestPollerShutdownDrains(t *testing.T) {
	f := newPollerFixture(t, nil)

	f.createDue(t, "drained")

	f.poller.Start(&PollerConfig{PollInterval: 50 * time.Millisecond, ShutdownGrace: 5 * time.Second})

	require.Eventually(t, func() bool {
		_, total, err := f.executions.List(context.Background(), executions.ListOptions{})
		return err == nil && total == 1
	}, 5*time.Second, 20*time.Millisecond)

	f.poller.Shutdown()
	require.Zero(t, f.supervisor.InFlight())
}
