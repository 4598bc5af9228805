package domain

import "time"

// BatchStatus enumerates batch job lifecycle states.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusStopped    BatchStatus = "stopped"
	BatchStatusFailed     BatchStatus = "failed"
)

// Terminal reports whether no further automatic transition occurs.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusStopped, BatchStatusFailed:
		return true
	}
	return false
}

// RowError records a single failed row. Row is the 1-based CSV line number
// counted from the header line, so the first data row reports as 2. Archive
// failures use row 0.
type RowError struct {
	Row     int    `json:"row"`
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

// BatchJob encapsulates the lifecycle of one CSV-driven generation run.
// It is created by the upload handler and mutated exclusively by the batch
// processor while running; counters only increase and Errors is append-only,
// so status polls read consistent snapshots through the registry.
type BatchJob struct {
	ID          string
	Model       string
	Total       int
	Done        int
	Failed      int
	Status      BatchStatus
	Errors      []RowError
	ZipPath     string
	ZipURL      string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// JobStatus enumerates single-image job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether the job reached a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// GeneratedImage describes one produced asset of a single-image job.
type GeneratedImage struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Bytes    int64  `json:"bytes"`
}

// Job is the single-image variant: one prompt, one generation request.
// Same single-writer-during-processing discipline as BatchJob; terminal
// records are garbage-collected by the retention sweeper.
type Job struct {
	ID        string
	Status    JobStatus
	Result    []GeneratedImage
	Error     string
	CreatedAt time.Time
}
