// Package batch implements the asynchronous job subsystem: a bounded worker
// queue, the per-job row loop with cooperative stop, ZIP packaging of results
// and retention sweeping.
package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"carstudio/internal/domain"
	"carstudio/internal/infra"
	"carstudio/internal/prompt"
	"carstudio/internal/providers/replicate"
	"carstudio/internal/registry"
	"carstudio/internal/storage"
)

// Processor owns batch and single-image job execution. Each job record is
// mutated only by the task processing it; everyone else reads snapshots.
type Processor struct {
	batches  registry.BatchRegistry
	jobs     registry.JobRegistry
	gen      replicate.Generator
	store    *storage.FileStore
	queue    *Queue
	archiver *Archiver
	mirror   *registry.BatchMirror
	logger   infra.Logger
}

// NewProcessor wires the processor. mirror may be nil when no database is
// configured.
func NewProcessor(
	batches registry.BatchRegistry,
	jobs registry.JobRegistry,
	gen replicate.Generator,
	store *storage.FileStore,
	queue *Queue,
	archiver *Archiver,
	mirror *registry.BatchMirror,
	logger infra.Logger,
) *Processor {
	return &Processor{
		batches:  batches,
		jobs:     jobs,
		gen:      gen,
		store:    store,
		queue:    queue,
		archiver: archiver,
		mirror:   mirror,
		logger:   logger,
	}
}

// EnqueueBatch registers a new batch job for the parsed rows and admits it to
// the queue. It returns the job ID immediately; processing happens on a
// worker.
func (p *Processor) EnqueueBatch(rows []domain.Row) (string, error) {
	id := uuid.NewString()
	p.batches.Create(&domain.BatchJob{
		ID:        id,
		Model:     p.gen.Model(),
		Total:     len(rows),
		Status:    domain.BatchStatusPending,
		CreatedAt: time.Now(),
	})
	if err := p.queue.Enqueue(func(ctx context.Context) { p.runBatch(ctx, id, rows) }); err != nil {
		p.batches.Delete(id)
		return "", err
	}
	p.logger.Info().Str("job_id", id).Int("rows", len(rows)).Msg("batch: job queued")
	return id, nil
}

func (p *Processor) runBatch(ctx context.Context, id string, rows []domain.Row) {
	logger := p.logger.With().Str("job_id", id).Logger()

	p.batches.Update(id, func(j *domain.BatchJob) {
		if j.Status == domain.BatchStatusPending {
			j.Status = domain.BatchStatusProcessing
		}
	})

	// Directory cleanup is unconditional: success, stop and failure all
	// release the per-job scratch space.
	defer func() {
		if err := p.store.RemoveJobDir(id); err != nil {
			logger.Warn().Err(err).Msg("batch: temp dir cleanup failed")
		}
	}()

	if _, err := p.store.EnsureJobDir(id); err != nil {
		logger.Error().Err(err).Msg("batch: temp dir creation failed")
		p.appendError(id, 0, "temp directory creation failed", err.Error())
		p.batches.Update(id, func(j *domain.BatchJob) { j.Status = domain.BatchStatusFailed })
	} else if strings.TrimSpace(p.gen.Model()) == "" {
		// Structural failure: no row is attempted, but the archive still
		// runs so the manifest records what happened.
		logger.Error().Msg("batch: generation model not configured")
		p.appendError(id, 0, "generation model not configured", "")
		p.batches.Update(id, func(j *domain.BatchJob) { j.Status = domain.BatchStatusFailed })
	} else {
		p.processRows(ctx, id, rows, logger)
	}

	p.batches.Update(id, func(j *domain.BatchJob) {
		if j.Status == domain.BatchStatusProcessing {
			// A run where every attempted row failed is a failed job,
			// not a completed one.
			if j.Done == 0 && j.Failed > 0 {
				j.Status = domain.BatchStatusFailed
			} else {
				j.Status = domain.BatchStatusCompleted
			}
		}
		if j.CompletedAt.IsZero() {
			j.CompletedAt = time.Now()
		}
	})

	// Finalization runs detached from the task context: a run cut short by
	// the per-task timeout still has assets on disk worth publishing.
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	p.finalize(finalizeCtx, id, logger)
}

func (p *Processor) processRows(ctx context.Context, id string, rows []domain.Row, logger infra.Logger) {
	for i, row := range rows {
		if p.stopRequested(id) {
			logger.Info().Int("row", row.Line).Msg("batch: stop observed before row")
			return
		}

		text := prompt.BuildPrompt(row)
		aspect, ok := prompt.NormalizeAspectRatio(row.AspectRatio)
		if !ok {
			logger.Warn().Int("row", row.Line).Str("aspect_ratio", row.AspectRatio).
				Str("fallback", aspect).Msg("batch: unrecognized aspect ratio")
		}

		urls, err := p.gen.Generate(ctx, replicate.GenerateRequest{
			Prompt:      text,
			AspectRatio: aspect,
			RequestID:   fmt.Sprintf("%s-%d", id, i+1),
		})

		// A stop may have arrived while waiting on the provider; the
		// result of the in-flight prediction is discarded, not aborted.
		if p.stopRequested(id) {
			logger.Info().Int("row", row.Line).Msg("batch: stop observed after wait, discarding result")
			return
		}

		if err != nil {
			p.failRow(id, row.Line, "generation failed", err.Error(), logger)
			continue
		}
		if len(urls) == 0 {
			p.failRow(id, row.Line, "provider returned no output", "", logger)
			continue
		}

		data, err := p.gen.Fetch(ctx, urls[0])
		if err != nil {
			p.failRow(id, row.Line, "asset download failed", err.Error(), logger)
			continue
		}

		filename := prompt.MakeFilename(row, i)
		if _, err := p.store.Write(ctx, storage.JobKey(id, filename), data); err != nil {
			p.failRow(id, row.Line, "asset write failed", err.Error(), logger)
			continue
		}

		p.batches.Update(id, func(j *domain.BatchJob) { j.Done++ })
		logger.Debug().Int("row", row.Line).Str("file", filename).Msg("batch: row done")
	}
}

// finalize always builds the archive, even for stopped or structurally
// failed jobs, so partial results are never silently discarded.
func (p *Processor) finalize(ctx context.Context, id string, logger infra.Logger) {
	snap, ok := p.batches.Snapshot(id)
	if !ok {
		return
	}

	zipPath, zipURL, err := p.archiver.Build(ctx, snap, p.store.JobDirPath(id))
	if err != nil {
		logger.Error().Err(err).Msg("batch: archive build failed")
		p.batches.Update(id, func(j *domain.BatchJob) {
			j.Errors = append(j.Errors, domain.RowError{Row: 0, Reason: "archive creation failed", Details: err.Error()})
			j.Status = domain.BatchStatusFailed
		})
	} else {
		p.batches.Update(id, func(j *domain.BatchJob) {
			j.ZipPath = zipPath
			j.ZipURL = zipURL
		})
		logger.Info().Str("zip_url", zipURL).Msg("batch: archive published")
	}

	if final, ok := p.batches.Snapshot(id); ok {
		logger.Info().
			Str("status", string(final.Status)).
			Int("done", final.Done).
			Int("failed", final.Failed).
			Int("total", final.Total).
			Msg("batch: job finished")
		if err := p.mirror.Record(ctx, final); err != nil {
			logger.Warn().Err(err).Msg("batch: history mirror write failed")
		}
	}
}

// Stop flips a processing job to stopped. The processor observes the flag at
// its per-row checkpoints; predictions already in flight finish naturally.
func (p *Processor) Stop(id string) error {
	var applied bool
	found := p.batches.Update(id, func(j *domain.BatchJob) {
		if j.Status == domain.BatchStatusProcessing {
			j.Status = domain.BatchStatusStopped
			applied = true
		}
	})
	if !found {
		return domain.ErrNotFound
	}
	if !applied {
		return domain.ErrJobNotStoppable
	}
	p.logger.Info().Str("job_id", id).Msg("batch: stop requested")
	return nil
}

func (p *Processor) stopRequested(id string) bool {
	snap, ok := p.batches.Snapshot(id)
	return ok && snap.Status == domain.BatchStatusStopped
}

func (p *Processor) failRow(id string, line int, reason, details string, logger infra.Logger) {
	logger.Warn().Int("row", line).Str("reason", reason).Str("details", details).Msg("batch: row failed")
	p.batches.Update(id, func(j *domain.BatchJob) {
		j.Failed++
		j.Errors = append(j.Errors, domain.RowError{Row: line, Reason: reason, Details: details})
	})
}

func (p *Processor) appendError(id string, line int, reason, details string) {
	p.batches.Update(id, func(j *domain.BatchJob) {
		j.Errors = append(j.Errors, domain.RowError{Row: line, Reason: reason, Details: details})
	})
}
