package scheduler

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Schedule represents a recurring crew run driven by a cron expression.
type Schedule struct {
	ID             int64          // Unique schedule ID
	Name           string         // Schedule name
	CronExpression string         // Standard 5-field cron expression
	AgentsYAML     string         // Agent definitions (raw YAML)
	TasksYAML      string         // Task definitions (raw YAML)
	Inputs         map[string]any // Static inputs passed to every run
	Planning       bool           // Enable planning mode on the engine
	Model          string         // Model override (empty = engine default)
	IsActive       bool           // Whether the schedule participates in polling
	LastRunAt      *time.Time     // When the schedule last dispatched
	NextRunAt      *time.Time     // Next eligible dispatch time
	CreatedAt      time.Time      // When schedule was created
	UpdatedAt      time.Time      // When schedule was last updated
}

// IsDue reports whether the schedule should dispatch at the given instant.
// A schedule with no next run time is never due.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.IsActive || s.NextRunAt == nil {
		return false
	}
	return !s.NextRunAt.After(now)
}

// Validate checks the fields a schedule must carry before it can be stored.
func (s *Schedule) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schedule name is required")
	}
	if s.CronExpression == "" {
		return fmt.Errorf("cron expression is required")
	}
	if err := ValidateYAML("agents_yaml", s.AgentsYAML); err != nil {
		return err
	}
	if err := ValidateYAML("tasks_yaml", s.TasksYAML); err != nil {
		return err
	}
	return nil
}

// ValidateYAML rejects payloads that are not well-formed YAML mappings.
func ValidateYAML(field, content string) error {
	if content == "" {
		return fmt.Errorf("%s is required", field)
	}
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return fmt.Errorf("%s is not valid YAML: %w", field, err)
	}
	if len(doc) == 0 {
		return fmt.Errorf("%s must define at least one entry", field)
	}
	return nil
}
