package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SoubhikGhosh/neev-cheques-clearing/constants"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/common"
)

// Registry holds the jobs known to this process. It is constructed
// once and injected wherever job records are created or read; nothing
// reaches for a package-level map.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry builds an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Create registers a new queued job and returns it.
func (r *Registry) Create(inputFiles []string, cancel context.CancelFunc) *Job {
	job := &Job{
		id:         uuid.New().String(),
		status:     constants.JobStatusQueued,
		inputFiles: inputFiles,
		startTime:  time.Now().UTC(),
		cancel:     cancel,
	}
	r.mu.Lock()
	r.jobs[job.id] = job
	r.mu.Unlock()
	return job
}

// Get looks a job up by id.
func (r *Registry) Get(id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return job, nil
}

// Remove evicts a job record, typically a terminal one whose report has
// been collected. The registry itself never expires entries; eviction
// belongs to operator tooling or a future retention sweep, not the
// request path.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

// Len reports the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
