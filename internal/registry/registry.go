// Package registry holds in-flight job records keyed by job ID. The default
// implementation is an in-memory store; the processor is the single writer
// for any given job, while HTTP status polls read copies through Snapshot.
package registry

import (
	"time"

	"carstudio/internal/domain"
)

// BatchRegistry stores batch job records.
type BatchRegistry interface {
	Create(job *domain.BatchJob)
	// Snapshot returns a copy of the job safe for concurrent readers.
	Snapshot(id string) (domain.BatchJob, bool)
	// Update applies fn to the job under the registry lock and reports
	// whether the job exists.
	Update(id string, fn func(*domain.BatchJob)) bool
	Delete(id string)
	Len() int
}

// JobRegistry stores single-image job records.
type JobRegistry interface {
	Create(job *domain.Job)
	Snapshot(id string) (domain.Job, bool)
	Update(id string, fn func(*domain.Job)) bool
	Delete(id string)
	// DeleteTerminalBefore removes terminal jobs created before cutoff
	// and returns the number removed.
	DeleteTerminalBefore(cutoff time.Time) int
	Len() int
}
