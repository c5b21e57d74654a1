package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type report struct {
	Status string
	Result any
}

type fakeReporter struct {
	reports []report
	refuse  bool
}

func (r *fakeReporter) ReportStatus(ctx context.Context, jobID, status, message string, result any) bool {
	if r.refuse {
		return false
	}
	r.reports = append(r.reports, report{Status: status, Result: result})
	return true
}

func TestLocalEngineRunCrew(t *testing.T) {
	reporter := &fakeReporter{}
	eng := NewLocalEngine(reporter, "gpt-4o-mini")

	err := eng.RunCrew(context.Background(), JobConfig{
		JobID:   "job-1",
		RunName: "brisk-harbor",
		Inputs:  map[string]any{"topic": "tides"},
	})
	require.NoError(t, err)

	require.Len(t, reporter.reports, 2)
	require.Equal(t, "RUNNING", reporter.reports[0].Status)
	require.Equal(t, "COMPLETED", reporter.reports[1].Status)

	result, ok := reporter.reports[1].Result.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "crew", result["kind"])
	require.Equal(t, "gpt-4o-mini", result["model"])
}

func TestLocalEngineModelOverride(t *testing.T) {
	reporter := &fakeReporter{}
	eng := NewLocalEngine(reporter, "gpt-4o-mini")

	err := eng.RunFlow(context.Background(), JobConfig{JobID: "job-2", Model: "claude-sonnet-4"})
	require.NoError(t, err)

	result := reporter.reports[1].Result.(map[string]any)
	require.Equal(t, "flow", result["kind"])
	require.Equal(t, "claude-sonnet-4", result["model"])
}

func TestLocalEngineReporterRefusal(t *testing.T) {
	eng := NewLocalEngine(&fakeReporter{refuse: true}, "gpt-4o-mini")

	err := eng.RunCrew(context.Background(), JobConfig{JobID: "job-3"})
	require.Error(t, err)
}

func TestLocalEngineCancelledContext(t *testing.T) {
	reporter := &fakeReporter{}
	eng := NewLocalEngine(reporter, "gpt-4o-mini")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := eng.RunCrew(ctx, JobConfig{JobID: "job-4"})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)

	// The job got as far as RUNNING but never completed.
	require.Len(t, reporter.reports, 1)
	require.Equal(t, "RUNNING", reporter.reports[0].Status)
}
