package executions

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Janitor periodically removes settled execution records older than the
// retention window. In-flight records are never touched.
type Janitor struct {
	store     *Store
	retention time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewJanitor creates a janitor with the given retention window. Zero means
// the default 30 days.
func NewJanitor(store *Store, retention time.Duration) *Janitor {
	if retention == 0 {
		retention = 30 * 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Janitor{
		store:     store,
		retention: retention,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins background cleanup.
func (j *Janitor) Start() {
	j.wg.Add(1)
	go j.cleanupLoop(1 * time.Hour)
}

// Stop gracefully shuts down the janitor.
func (j *Janitor) Stop() {
	j.cancel()
	j.wg.Wait()
}

func (j *Janitor) cleanupLoop(interval time.Duration) {
	defer j.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			deleted, err := j.store.DeleteOlderThan(j.ctx, j.retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to clean up old executions")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Removed old execution records")
			}
		}
	}
}
