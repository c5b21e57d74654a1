package executions

import (
	"sync"
	"time"
)

// RegistryEntry is the advisory in-memory view of an execution. The durable
// record in the store is authoritative; the registry only answers fast
// lookups and survives store write failures.
type RegistryEntry struct {
	JobID     string
	Status    Status
	RunName   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// asExecution renders the entry as a partial execution record. Fields the
// registry does not track stay zero.
func (e *RegistryEntry) asExecution() *Execution {
	return &Execution{
		JobID:     e.JobID,
		Status:    e.Status,
		RunName:   e.RunName,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// Registry tracks executions started during this process's lifetime.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*RegistryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*RegistryEntry)}
}

// Set records or refreshes an entry.
func (r *Registry) Set(jobID string, status Status, runName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if entry, ok := r.entries[jobID]; ok {
		entry.Status = status
		if runName != "" {
			entry.RunName = runName
		}
		entry.UpdatedAt = now
		return
	}

	r.entries[jobID] = &RegistryEntry{
		JobID:     jobID,
		Status:    status,
		RunName:   runName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Get returns the entry for a job, or nil when unknown.
func (r *Registry) Get(jobID string) *RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[jobID]
	if !ok {
		return nil
	}

	copied := *entry
	return &copied
}

// Snapshot returns a copy of every entry.
func (r *Registry) Snapshot() []*RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*RegistryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		copied := *entry
		out = append(out, &copied)
	}
	return out
}

// Len returns the number of tracked executions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
