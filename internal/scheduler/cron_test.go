package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextRun(t *testing.T) {
	parser := NewCronParser()

	after := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)

	next, err := parser.NextRun("0 * * * *", after)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), next)
	require.Equal(t, time.UTC, next.Location())
}

func TestNextRunStrictlyAfter(t *testing.T) {
	parser := NewCronParser()

	// An instant exactly on the slot advances to the next one.
	onTheHour := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

	next, err := parser.NextRun("0 * * * *", onTheHour)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), next)
}

func TestNextRunDescriptor(t *testing.T) {
	parser := NewCronParser()

	after := time.Date(2024, 6, 15, 8, 45, 12, 0, time.UTC)

	next, err := parser.NextRun("@hourly", after)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC), next)
}

func TestNextRunConvertsToUTC(t *testing.T) {
	parser := NewCronParser()

	loc := time.FixedZone("UTC+2", 2*60*60)
	after := time.Date(2024, 1, 1, 12, 30, 0, 0, loc)

	next, err := parser.NextRun("0 * * * *", after)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), next)
}

func TestParseInvalidExpression(t *testing.T) {
	parser := NewCronParser()

	for _, expr := range []string{"", "not a cron", "* * *", "99 * * * *"} {
		_, err := parser.Parse(expr)
		require.Error(t, err, "expression %q", expr)
		require.True(t, errors.Is(err, ErrInvalidCron))
	}
}

func TestValidateCron(t *testing.T) {
	require.NoError(t, ValidateCron("*/5 * * * *"))
	require.NoError(t, ValidateCron("@daily"))
	require.Error(t, ValidateCron("every tuesday"))
}
