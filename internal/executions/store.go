package executions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/halvard/coxswain/internal/database"
)

// ErrMissingField marks create calls without the required identifiers.
var ErrMissingField = errors.New("missing required field")

const executionColumns = `id, job_id, status, run_name, kind, trigger_type, trigger_id,
       inputs, result, error, created_at, updated_at, completed_at`

// Store handles database operations for execution records.
type Store struct {
	db *database.DB
}

// NewStore creates a new execution store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new execution record. A duplicate job_id surfaces as a
// unique constraint error the caller can classify.
func (s *Store) Create(ctx context.Context, exec *Execution) error {
	if exec.JobID == "" {
		return fmt.Errorf("%w: job_id", ErrMissingField)
	}
	if exec.Status == "" {
		exec.Status = StatusPending
	}
	if !exec.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", exec.Status)
	}
	if exec.Kind == "" {
		exec.Kind = KindCrew
	}
	if exec.TriggerType == "" {
		exec.TriggerType = TriggerAPI
	}

	now := time.Now().UTC()
	exec.CreatedAt = now
	exec.UpdatedAt = now

	query := `
		INSERT INTO executions (job_id, status, run_name, kind, trigger_type, trigger_id,
			inputs, result, error, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		exec.JobID,
		string(exec.Status),
		exec.RunName,
		string(exec.Kind),
		string(exec.TriggerType),
		exec.TriggerID,
		exec.Inputs,
		exec.Result,
		exec.Error,
		database.FormatTime(exec.CreatedAt),
		database.FormatTime(exec.UpdatedAt),
		nullCompletedAt(exec.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", database.ClassifyError(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading execution id: %w", err)
	}
	exec.ID = id

	return nil
}

// GetByJobID retrieves an execution by job ID. Returns (nil, nil) when no
// record exists.
func (s *Store) GetByJobID(ctx context.Context, jobID string) (*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE job_id = ?`

	row := s.db.QueryRowContext(ctx, query, jobID)

	exec, err := scanExecution(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying execution: %w", err)
	}

	return exec, nil
}

// Update carries the fields an UpdateByJobID call may change. Nil fields are
// left untouched.
type Update struct {
	Status      *Status
	RunName     *string
	Result      *string
	Error       *string
	CompletedAt *time.Time
}

// UpdateByJobID merges the given fields into an existing record and returns
// the updated row. Returns (nil, nil) when no record exists.
func (s *Store) UpdateByJobID(ctx context.Context, jobID string, upd Update) (*Execution, error) {
	builder := database.NewUpdate("executions")

	if upd.Status != nil {
		if !upd.Status.IsValid() {
			return nil, fmt.Errorf("invalid status: %s", *upd.Status)
		}
		builder.Set("status", string(*upd.Status))
	}
	if upd.RunName != nil {
		builder.Set("run_name", *upd.RunName)
	}
	if upd.Result != nil {
		builder.Set("result", *upd.Result)
	}
	if upd.Error != nil {
		builder.Set("error", *upd.Error)
	}
	if upd.CompletedAt != nil {
		builder.Set("completed_at", database.FormatTime(*upd.CompletedAt))
	}

	if builder.Len() == 0 {
		return s.GetByJobID(ctx, jobID)
	}

	builder.Set("updated_at", database.Now())
	builder.Where("job_id", jobID)

	query, args := builder.Build()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating execution: %w", database.ClassifyError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}

	return s.GetByJobID(ctx, jobID)
}

// ListOptions narrows a List call.
type ListOptions struct {
	Status      Status
	Kind        Kind
	TriggerType TriggerType
	TriggerID   string
	Limit       int
	Offset      int
}

// List retrieves execution records newest first, along with the total count
// of the filtered set.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Execution, int, error) {
	build := func() *database.QueryBuilder {
		q := database.NewQuery("executions")
		if opts.Status != "" {
			q.Where("status", string(opts.Status))
		}
		if opts.Kind != "" {
			q.Where("kind", string(opts.Kind))
		}
		if opts.TriggerType != "" {
			q.Where("trigger_type", string(opts.TriggerType))
		}
		if opts.TriggerID != "" {
			q.Where("trigger_id", opts.TriggerID)
		}
		return q
	}

	countQuery, countArgs := build().BuildCount()

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting executions: %w", err)
	}

	q := build().
		Select(executionColumns).
		OrderByDesc("created_at").
		Limit(opts.Limit).
		Offset(opts.Offset)

	query, args := q.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var execs []*Execution
	for rows.Next() {
		exec, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning execution row: %w", err)
		}
		execs = append(execs, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating execution rows: %w", err)
	}

	return execs, total, nil
}

// DeleteOlderThan removes settled executions created before the cutoff and
// returns how many rows were deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := database.FormatTime(time.Now().UTC().Add(-retention))

	query := `
		DELETE FROM executions
		WHERE created_at < ?
		  AND status IN ('COMPLETED', 'FAILED', 'CANCELLED')
	`

	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting old executions: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	return rows, nil
}

func scanExecution(scan func(dest ...any) error) (*Execution, error) {
	var exec Execution
	var status, kind, triggerType string
	var runName, triggerID, inputs, result, errMsg sql.NullString
	var createdAt, updatedAt string
	var completedAt sql.NullString

	err := scan(
		&exec.ID,
		&exec.JobID,
		&status,
		&runName,
		&kind,
		&triggerType,
		&triggerID,
		&inputs,
		&result,
		&errMsg,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	exec.Status = Status(status)
	exec.Kind = Kind(kind)
	exec.TriggerType = TriggerType(triggerType)
	exec.RunName = runName.String
	exec.TriggerID = triggerID.String
	exec.Inputs = inputs.String
	exec.Result = result.String
	exec.Error = errMsg.String

	if exec.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if exec.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	if completedAt.Valid {
		t, err := database.ParseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
		exec.CompletedAt = &t
	}

	return &exec, nil
}

func nullCompletedAt(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: database.FormatTime(*t), Valid: true}
}
