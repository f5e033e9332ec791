package extractions

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ActiveJob is a running job and the function that stops it.
type ActiveJob struct {
	ContractID uuid.UUID
	Cancel     context.CancelFunc
}

// Registry tracks the jobs running in this process so they can be cancelled
// individually or all at once on shutdown.
type Registry struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]ActiveJob
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[uuid.UUID]ActiveJob)}
}

// Register records a running job and the function that stops it.
func (r *Registry) Register(id, contractID uuid.UUID, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = ActiveJob{ContractID: contractID, Cancel: cancel}
}

// Unregister forgets a job. It does not cancel it.
func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// Cancel stops a running job's context. It reports whether the job was registered.
func (r *Registry) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	job, ok := r.jobs[id]
	r.mu.Unlock()

	if ok {
		job.Cancel()
	}
	return ok
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[id]
	return ok
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Drain removes and returns every registered job.
func (r *Registry) Drain() map[uuid.UUID]ActiveJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := r.jobs
	r.jobs = make(map[uuid.UUID]ActiveJob)
	return drained
}
