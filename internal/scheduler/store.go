package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/halvard/coxswain/internal/database"
)

// ErrScheduleNotFound marks lookups for schedules that do not exist.
var ErrScheduleNotFound = errors.New("schedule not found")

const scheduleColumns = `id, name, cron_expression, agents_yaml, tasks_yaml, inputs,
       planning, model, is_active, last_run_at, next_run_at, created_at, updated_at`

// Store handles database operations for schedules.
type Store struct {
	db   *database.DB
	cron *CronParser
}

// NewStore creates a new schedule store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, cron: NewCronParser()}
}

// Create validates and inserts a new schedule, computing its initial next run.
func (s *Store) Create(ctx context.Context, schedule *Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	if schedule.NextRunAt == nil {
		nextRun, err := s.cron.NextRun(schedule.CronExpression, now)
		if err != nil {
			return fmt.Errorf("computing initial next_run_at: %w", err)
		}
		schedule.NextRunAt = &nextRun
	}

	inputsJSON, err := marshalInputs(schedule.Inputs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO schedules (name, cron_expression, agents_yaml, tasks_yaml, inputs,
			planning, model, is_active, last_run_at, next_run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		schedule.Name,
		schedule.CronExpression,
		schedule.AgentsYAML,
		schedule.TasksYAML,
		inputsJSON,
		boolToInt(schedule.Planning),
		schedule.Model,
		boolToInt(schedule.IsActive),
		nullTime(schedule.LastRunAt),
		nullTime(schedule.NextRunAt),
		database.FormatTime(schedule.CreatedAt),
		database.FormatTime(schedule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", database.ClassifyError(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading schedule id: %w", err)
	}
	schedule.ID = id

	return nil
}

// Update rewrites a schedule's definition. When the cron expression changes,
// next_run_at is recomputed from now.
func (s *Store) Update(ctx context.Context, schedule *Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	existing, err := s.FindByID(ctx, schedule.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	schedule.UpdatedAt = now

	if existing.CronExpression != schedule.CronExpression || schedule.NextRunAt == nil {
		nextRun, err := s.cron.NextRun(schedule.CronExpression, now)
		if err != nil {
			return fmt.Errorf("recomputing next_run_at: %w", err)
		}
		schedule.NextRunAt = &nextRun
	}

	inputsJSON, err := marshalInputs(schedule.Inputs)
	if err != nil {
		return err
	}

	query := `
		UPDATE schedules
		SET name = ?, cron_expression = ?, agents_yaml = ?, tasks_yaml = ?, inputs = ?,
		    planning = ?, model = ?, is_active = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = s.db.ExecContext(ctx, query,
		schedule.Name,
		schedule.CronExpression,
		schedule.AgentsYAML,
		schedule.TasksYAML,
		inputsJSON,
		boolToInt(schedule.Planning),
		schedule.Model,
		boolToInt(schedule.IsActive),
		nullTime(schedule.NextRunAt),
		database.FormatTime(schedule.UpdatedAt),
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", database.ClassifyError(err))
	}

	return nil
}

// ToggleActive flips a schedule's active flag. Activation recomputes
// next_run_at from now so a long-dormant schedule does not fire immediately
// for every interval it missed.
func (s *Store) ToggleActive(ctx context.Context, id int64) (*Schedule, error) {
	schedule, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	schedule.IsActive = !schedule.IsActive
	now := time.Now().UTC()

	var nextRun sql.NullString
	if schedule.IsActive {
		next, err := s.cron.NextRun(schedule.CronExpression, now)
		if err != nil {
			return nil, fmt.Errorf("recomputing next_run_at: %w", err)
		}
		schedule.NextRunAt = &next
		nextRun = sql.NullString{String: database.FormatTime(next), Valid: true}
	} else {
		nextRun = nullTime(schedule.NextRunAt)
	}

	query := `
		UPDATE schedules
		SET is_active = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = s.db.ExecContext(ctx, query,
		boolToInt(schedule.IsActive),
		nextRun,
		database.FormatTime(now),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("toggling schedule: %w", err)
	}

	schedule.UpdatedAt = now
	return schedule, nil
}

// AdvanceNextRun stamps last_run_at and moves next_run_at past the given
// instant. The poller calls this in the same tick that dispatches a run, so
// the schedule cannot fire twice for one cron slot.
func (s *Store) AdvanceNextRun(ctx context.Context, schedule *Schedule, now time.Time) error {
	nextRun, err := s.cron.NextRun(schedule.CronExpression, now)
	if err != nil {
		return fmt.Errorf("computing next_run_at: %w", err)
	}

	query := `
		UPDATE schedules
		SET last_run_at = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = s.db.ExecContext(ctx, query,
		database.FormatTime(now),
		database.FormatTime(nextRun),
		database.FormatTime(time.Now().UTC()),
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("advancing next_run_at: %w", err)
	}

	schedule.LastRunAt = &now
	schedule.NextRunAt = &nextRun
	return nil
}

// UpdateAfterExecution records that a run finished. It re-derives next_run_at
// from the current time, which makes it idempotent against the advance the
// poller already wrote at dispatch: both writers land on the same cron slot.
func (s *Store) UpdateAfterExecution(ctx context.Context, id int64, executedAt time.Time) error {
	schedule, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}

	nextRun, err := s.cron.NextRun(schedule.CronExpression, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("computing next_run_at: %w", err)
	}

	query := `
		UPDATE schedules
		SET last_run_at = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = s.db.ExecContext(ctx, query,
		database.FormatTime(executedAt),
		database.FormatTime(nextRun),
		database.FormatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating schedule after execution: %w", err)
	}

	return nil
}

// Delete removes a schedule.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrScheduleNotFound, id)
	}

	return nil
}

// FindByID retrieves a schedule by ID.
func (s *Store) FindByID(ctx context.Context, id int64) (*Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	schedule, err := scanSchedule(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrScheduleNotFound, id)
		}
		return nil, fmt.Errorf("getting schedule: %w", err)
	}

	return schedule, nil
}

// FindAll retrieves all schedules ordered by creation time.
func (s *Store) FindAll(ctx context.Context) ([]*Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	return scanSchedules(rows)
}

// FindDue retrieves active schedules whose next run time has passed.
func (s *Store) FindDue(ctx context.Context, now time.Time) ([]*Schedule, error) {
	query, args := database.NewQuery("schedules").
		Select(scheduleColumns).
		Where("is_active", 1).
		Filter("next_run_at", database.OpNotNull, nil).
		Filter("next_run_at", database.OpLte, database.FormatTime(now)).
		Sort("next_run_at", database.SortAsc).
		Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying due schedules: %w", err)
	}
	defer rows.Close()

	return scanSchedules(rows)
}

func scanSchedule(scan func(dest ...any) error) (*Schedule, error) {
	var schedule Schedule
	var inputsJSON sql.NullString
	var model sql.NullString
	var planning, isActive int
	var lastRun, nextRun sql.NullString
	var createdAt, updatedAt string

	err := scan(
		&schedule.ID,
		&schedule.Name,
		&schedule.CronExpression,
		&schedule.AgentsYAML,
		&schedule.TasksYAML,
		&inputsJSON,
		&planning,
		&model,
		&isActive,
		&lastRun,
		&nextRun,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if inputsJSON.Valid && inputsJSON.String != "" {
		if err := json.Unmarshal([]byte(inputsJSON.String), &schedule.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshaling inputs: %w", err)
		}
	}

	schedule.Model = model.String
	schedule.Planning = planning == 1
	schedule.IsActive = isActive == 1

	if lastRun.Valid {
		t, err := database.ParseTime(lastRun.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_run_at: %w", err)
		}
		schedule.LastRunAt = &t
	}

	if nextRun.Valid {
		t, err := database.ParseTime(nextRun.String)
		if err != nil {
			return nil, fmt.Errorf("parsing next_run_at: %w", err)
		}
		schedule.NextRunAt = &t
	}

	if schedule.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if schedule.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &schedule, nil
}

func scanSchedules(rows *sql.Rows) ([]*Schedule, error) {
	var schedules []*Schedule

	for rows.Next() {
		schedule, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule row: %w", err)
		}
		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedule rows: %w", err)
	}

	return schedules, nil
}

func marshalInputs(inputs map[string]any) (sql.NullString, error) {
	if inputs == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(inputs)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling inputs: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: database.FormatTime(*t), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
