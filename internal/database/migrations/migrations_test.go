package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestRun(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := Run(ctx, db); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM _coxswain_versions").Scan(&count)
	if err != nil {
		t.Fatalf("version table query failed: %v", err)
	}

	if count == 0 {
		t.Error("expected at least one migration to be applied")
	}
}

func TestRun_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := Run(ctx, db); err != nil {
		t.Fatalf("first Run() failed: %v", err)
	}

	if err := Run(ctx, db); err != nil {
		t.Fatalf("second Run() failed: %v", err)
	}

	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM _coxswain_versions").Scan(&count)
	if err != nil {
		t.Fatalf("version table query failed: %v", err)
	}

	applied, err := GetApplied(ctx, db)
	if err != nil {
		t.Fatalf("GetApplied() failed: %v", err)
	}

	if len(applied) != count {
		t.Errorf("expected %d applied migrations, got %d", count, len(applied))
	}
}

func TestCommentedStatementsExecute(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	// Migration files open with a comment line; the statement underneath
	// must still run.
	m := migration{
		id: "900_commented",
		content: `-- header comment
CREATE TABLE commented (id INTEGER PRIMARY KEY);

-- a second block
-- with two comment lines
CREATE INDEX idx_commented ON commented (id);`,
	}

	if err := ensureVersionTable(ctx, db); err != nil {
		t.Fatalf("ensureVersionTable() failed: %v", err)
	}
	if err := applyMigration(ctx, db, m); err != nil {
		t.Fatalf("applyMigration() failed: %v", err)
	}

	var exists int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='commented'
	`).Scan(&exists)
	if err != nil {
		t.Fatalf("checking table: %v", err)
	}
	if exists != 1 {
		t.Error("table from commented statement was not created")
	}
}

func TestStripComments(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"-- only a comment", ""},
		{"-- lead\nSELECT 1", "SELECT 1"},
		{"SELECT 1\n-- trail", "SELECT 1"},
		{"SELECT 1", "SELECT 1"},
	}

	for _, tc := range cases {
		if got := stripComments(tc.in); got != tc.want {
			t.Errorf("stripComments(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInitMigration(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := Run(ctx, db); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	schemas := map[string][]string{
		"schedules": {
			"id", "name", "cron_expression", "agents_yaml", "tasks_yaml",
			"inputs", "planning", "model", "is_active",
			"last_run_at", "next_run_at", "created_at", "updated_at",
		},
		"executions": {
			"id", "job_id", "status", "run_name", "kind",
			"trigger_type", "trigger_id", "inputs", "result", "error",
			"created_at", "updated_at", "completed_at",
		},
	}

	for table, required := range schemas {
		rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
		if err != nil {
			t.Fatalf("getting %s schema: %v", table, err)
		}

		columns := make(map[string]bool)
		for rows.Next() {
			var cid int
			var name, typ string
			var notnull, pk int
			var dfltValue sql.NullString
			if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
				t.Fatalf("scanning column info: %v", err)
			}
			columns[name] = true
		}
		rows.Close()

		for _, col := range required {
			if !columns[col] {
				t.Errorf("%s missing required column: %s", table, col)
			}
		}
	}

	for _, index := range []string{"idx_schedules_due", "idx_executions_status"} {
		var exists int
		err := db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM sqlite_master
			WHERE type='index' AND name=?
		`, index).Scan(&exists)
		if err != nil {
			t.Fatalf("checking %s: %v", index, err)
		}
		if exists != 1 {
			t.Errorf("%s index does not exist", index)
		}
	}
}
