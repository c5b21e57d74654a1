package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/halvard/coxswain/internal/config"
)

func testDB(t *testing.T) *DB {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := &config.DatabaseConfig{
		Path:         dbPath,
		WALMode:      true,
		ForeignKeys:  true,
		CacheSize:    -2000,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestOpenAndClose(t *testing.T) {
	db := testDB(t)

	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, table := range []string{"schedules", "executions"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist: %v", table, err)
		}
	}
}

func TestTransaction(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT)")
	if err != nil {
		t.Fatalf("create table failed: %v", err)
	}

	err = db.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Exec("INSERT INTO test (id, name) VALUES (1, 'alice')")
		if err != nil {
			return err
		}
		_, err = tx.Exec("INSERT INTO test (id, name) VALUES (2, 'bob')")
		return err
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM test").Scan(&count)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows, got %d", count)
	}
}

func TestTransactionRollback(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT UNIQUE)")
	if err != nil {
		t.Fatalf("create table failed: %v", err)
	}

	err = db.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Exec("INSERT INTO test (id, name) VALUES (1, 'alice')")
		if err != nil {
			return err
		}
		_, err = tx.Exec("INSERT INTO test (id, name) VALUES (2, 'alice')")
		return err
	})
	if err == nil {
		t.Fatal("expected transaction to fail")
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM test").Scan(&count)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 rows after rollback, got %d", count)
	}
}

func TestQueryBuilder(t *testing.T) {
	tests := []struct {
		name     string
		build    func() *QueryBuilder
		expected string
	}{
		{
			name: "simple select",
			build: func() *QueryBuilder {
				return NewQuery("executions")
			},
			expected: "SELECT * FROM executions",
		},
		{
			name: "select with columns",
			build: func() *QueryBuilder {
				return NewQuery("executions").Select("job_id", "status")
			},
			expected: "SELECT job_id, status FROM executions",
		},
		{
			name: "with filter",
			build: func() *QueryBuilder {
				return NewQuery("executions").Where("status", "RUNNING")
			},
			expected: "SELECT * FROM executions WHERE status = ?",
		},
		{
			name: "with sort",
			build: func() *QueryBuilder {
				return NewQuery("executions").OrderByDesc("created_at")
			},
			expected: "SELECT * FROM executions ORDER BY created_at DESC",
		},
		{
			name: "with limit and offset",
			build: func() *QueryBuilder {
				return NewQuery("executions").Limit(10).Offset(20)
			},
			expected: "SELECT * FROM executions LIMIT 10 OFFSET 20",
		},
		{
			name: "due predicate",
			build: func() *QueryBuilder {
				return NewQuery("schedules").
					Where("is_active", 1).
					Filter("next_run_at", OpNotNull, nil).
					Filter("next_run_at", OpLte, "2024-01-01T10:30:00Z")
			},
			expected: "SELECT * FROM schedules WHERE is_active = ? AND next_run_at IS NOT NULL AND next_run_at <= ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _ := tt.build().Build()
			if sql != tt.expected {
				t.Errorf("expected:\n%s\ngot:\n%s", tt.expected, sql)
			}
		})
	}
}

func TestQueryBuilderCount(t *testing.T) {
	sql, args := NewQuery("executions").Where("status", "FAILED").BuildCount()

	expected := "SELECT COUNT(*) FROM executions WHERE status = ?"
	if sql != expected {
		t.Errorf("expected:\n%s\ngot:\n%s", expected, sql)
	}
	if len(args) != 1 {
		t.Errorf("expected 1 arg, got %d", len(args))
	}
}

func TestUpdateBuilder(t *testing.T) {
	sql, args := NewUpdate("executions").
		Set("status", "COMPLETED").
		Set("completed_at", "2024-01-01T11:00:00Z").
		Where("job_id", "abc").
		Build()

	expected := "UPDATE executions SET status = ?, completed_at = ? WHERE job_id = ?"
	if sql != expected {
		t.Errorf("expected:\n%s\ngot:\n%s", expected, sql)
	}

	if len(args) != 3 {
		t.Errorf("expected 3 args, got %d", len(args))
	}
}

func TestClassifyError_Unique(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		"INSERT INTO executions (job_id, status, created_at, updated_at) VALUES (?, ?, ?, ?)",
		"dup-job", "PENDING", Now(), Now())
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO executions (job_id, status, created_at, updated_at) VALUES (?, ?, ?, ?)",
		"dup-job", "PENDING", Now(), Now())
	if err == nil {
		t.Fatal("expected unique violation")
	}

	classified := ClassifyError(err)
	if !IsUniqueError(classified) {
		t.Errorf("expected unique error, got %v", classified)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	s := FormatTime(now)
	parsed, err := ParseTime(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("expected %v, got %v", now, parsed)
	}
}

func init() {
	os.Setenv("TZ", "UTC")
}
