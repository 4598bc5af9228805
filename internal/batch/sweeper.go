package batch

import (
	"context"
	"path/filepath"
	"time"

	"carstudio/internal/infra"
	"carstudio/internal/registry"
	"carstudio/internal/storage"
)

// Sweeper periodically deletes expired ZIP artifacts and published images,
// reclaims job temp directories orphaned by a crash (the processor removes
// them on every normal exit path), and garbage-collects terminal single-image
// job records.
type Sweeper struct {
	store        *storage.FileStore
	jobs         registry.JobRegistry
	zipRetention time.Duration
	jobRetention time.Duration
	interval     time.Duration
	logger       infra.Logger
}

func NewSweeper(store *storage.FileStore, jobs registry.JobRegistry, zipRetention, jobRetention, interval time.Duration, logger infra.Logger) *Sweeper {
	return &Sweeper{
		store:        store,
		jobs:         jobs,
		zipRetention: zipRetention,
		jobRetention: jobRetention,
		interval:     interval,
		logger:       logger,
	}
}

// Run blocks, sweeping on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info().Dur("interval", s.interval).Msg("sweeper: started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper: stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs one pass over the artifact directories and the job registry.
func (s *Sweeper) Sweep() {
	now := time.Now()
	cutoff := now.Add(-s.zipRetention)

	dirs := []string{
		s.store.ZipScratchPath(),
		s.store.DownloadsPath(),
		filepath.Join(s.store.DownloadsPath(), "images"),
	}
	total := 0
	for _, dir := range dirs {
		removed, err := storage.RemoveOlderThan(dir, cutoff)
		if err != nil {
			s.logger.Warn().Err(err).Str("dir", dir).Msg("sweeper: artifact scan failed")
			continue
		}
		total += removed
	}

	// A temp dir this old can only be a crash leftover: the per-task
	// timeout bounds any live run well below the retention window.
	orphaned, err := storage.RemoveDirsOlderThan(s.store.JobsPath(), cutoff)
	if err != nil {
		s.logger.Warn().Err(err).Msg("sweeper: job dir scan failed")
	}

	swept := s.jobs.DeleteTerminalBefore(now.Add(-s.jobRetention))
	if total > 0 || orphaned > 0 || swept > 0 {
		s.logger.Info().Int("artifacts", total).Int("job_dirs", orphaned).Int("jobs", swept).Msg("sweeper: pass finished")
	}
}
