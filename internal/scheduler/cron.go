package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCron marks cron expressions the parser rejects.
var ErrInvalidCron = errors.New("invalid cron expression")

// CronParser wraps robfig/cron for parsing standard 5-field expressions
// with @every / @daily style descriptors.
type CronParser struct {
	parser cron.Parser
}

// NewCronParser creates a new cron parser with standard options.
func NewCronParser() *CronParser {
	return &CronParser{
		parser: cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
	}
}

// Parse parses a cron expression and returns a schedule.
func (p *CronParser) Parse(expression string) (cron.Schedule, error) {
	schedule, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCron, expression, err)
	}
	return schedule, nil
}

// NextRun calculates the next run time strictly after the given instant.
// Results are always in UTC. A zero after means now.
func (p *CronParser) NextRun(expression string, after time.Time) (time.Time, error) {
	schedule, err := p.Parse(expression)
	if err != nil {
		return time.Time{}, err
	}

	if after.IsZero() {
		after = time.Now()
	}

	return schedule.Next(after.UTC()).UTC(), nil
}

// ValidateCron reports whether an expression parses.
func ValidateCron(expression string) error {
	_, err := NewCronParser().Parse(expression)
	return err
}
