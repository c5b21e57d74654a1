package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/halvard/coxswain/internal/config"
	"github.com/halvard/coxswain/internal/database"
	"github.com/halvard/coxswain/internal/executions"
)

var dbPruneOlderThan time.Duration

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database utilities",
	Long: `Database utilities for coxswain.

Examples:
  coxswain db migrate             Apply pending migrations
  coxswain db info                Show database contents
  coxswain db prune --older-than 168h
                                  Delete settled executions older than a week`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	Long:  `Open the database and apply any migrations it has not seen yet.`,
	RunE:  runDBMigrate,
}

var dbInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show database contents",
	Long:  `Print the database path, schedule count and execution counts by status.`,
	RunE:  runDBInfo,
}

var dbPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old settled executions",
	Long: `Delete COMPLETED, FAILED and CANCELLED execution records older than
the retention window. Records still in flight are never touched.`,
	RunE: runDBPrune,
}

func init() {
	dbPruneCmd.Flags().DurationVar(&dbPruneOlderThan, "older-than", 30*24*time.Hour, "Retention window")

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbInfoCmd)
	dbCmd.AddCommand(dbPruneCmd)

	rootCmd.AddCommand(dbCmd)
}

func openDatabase() (*database.DB, error) {
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		log.Warn().Err(err).Msg("No config file found, using defaults")
		cfg = config.Default()
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", cfg.Database.Path, err)
	}

	return db, nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	// Open applies migrations as a side effect.
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Database is up to date.")
	return nil
}

func runDBInfo(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	var scheduleCount, activeCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules`).Scan(&scheduleCount); err != nil {
		return fmt.Errorf("counting schedules: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules WHERE is_active = 1`).Scan(&activeCount); err != nil {
		return fmt.Errorf("counting active schedules: %w", err)
	}

	fmt.Printf("Schedules: %d (%d active)\n", scheduleCount, activeCount)

	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM executions GROUP BY status ORDER BY status`)
	if err != nil {
		return fmt.Errorf("counting executions: %w", err)
	}
	defer rows.Close()

	fmt.Println("Executions:")
	total := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return fmt.Errorf("scanning execution counts: %w", err)
		}
		fmt.Printf("  %-10s %d\n", status, count)
		total += count
	}
	if err := rows.Err(); err != nil {
		return err
	}
	fmt.Printf("  %-10s %d\n", "total", total)

	return nil
}

func runDBPrune(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := executions.NewStore(db)

	deleted, err := store.DeleteOlderThan(context.Background(), dbPruneOlderThan)
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %d execution records older than %s.\n", deleted, dbPruneOlderThan)
	return nil
}
