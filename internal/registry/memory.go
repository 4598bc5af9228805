package registry

import (
	"sync"
	"time"

	"carstudio/internal/domain"
)

// MemoryBatchRegistry is the default in-process BatchRegistry.
type MemoryBatchRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*domain.BatchJob
}

func NewMemoryBatchRegistry() *MemoryBatchRegistry {
	return &MemoryBatchRegistry{jobs: make(map[string]*domain.BatchJob)}
}

func (r *MemoryBatchRegistry) Create(job *domain.BatchJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

func (r *MemoryBatchRegistry) Snapshot(id string) (domain.BatchJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.BatchJob{}, false
	}
	return copyBatchJob(job), true
}

func (r *MemoryBatchRegistry) Update(id string, fn func(*domain.BatchJob)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}

func (r *MemoryBatchRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

func (r *MemoryBatchRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func copyBatchJob(job *domain.BatchJob) domain.BatchJob {
	out := *job
	if len(job.Errors) > 0 {
		out.Errors = append([]domain.RowError(nil), job.Errors...)
	}
	return out
}

// MemoryJobRegistry is the default in-process JobRegistry.
type MemoryJobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

func NewMemoryJobRegistry() *MemoryJobRegistry {
	return &MemoryJobRegistry{jobs: make(map[string]*domain.Job)}
}

func (r *MemoryJobRegistry) Create(job *domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

func (r *MemoryJobRegistry) Snapshot(id string) (domain.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	out := *job
	if len(job.Result) > 0 {
		out.Result = append([]domain.GeneratedImage(nil), job.Result...)
	}
	return out, true
}

func (r *MemoryJobRegistry) Update(id string, fn func(*domain.Job)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}

func (r *MemoryJobRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

func (r *MemoryJobRegistry) DeleteTerminalBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, job := range r.jobs {
		if job.Status.Terminal() && job.CreatedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

func (r *MemoryJobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

var (
	_ BatchRegistry = (*MemoryBatchRegistry)(nil)
	_ JobRegistry   = (*MemoryJobRegistry)(nil)
)
