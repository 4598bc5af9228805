package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"carstudio/internal/domain"
	"carstudio/internal/infra"
	"carstudio/internal/storage"
	"carstudio/pkg/zip"
)

// Manifest entry names embedded in every archive.
const (
	summaryEntry    = "summary.json"
	failedRowsEntry = "failed_rows.json"
)

// Archiver packages a finished job's temp directory into a downloadable ZIP:
// all generated assets, a summary.json, and a failed_rows.json when any row
// failed. The archive is written to a scratch location first and then copied
// into the public download directory.
type Archiver struct {
	store   *storage.FileStore
	baseURL string
	now     func() time.Time
	logger  infra.Logger
}

func NewArchiver(store *storage.FileStore, baseURL string, logger infra.Logger) *Archiver {
	return &Archiver{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		logger:  logger,
	}
}

// DownloadURL maps a name inside the public download directory to its URL.
func (a *Archiver) DownloadURL(name string) string {
	return a.baseURL + "/" + name
}

type archiveSummary struct {
	JobID       string `json:"job_id"`
	Model       string `json:"model,omitempty"`
	Status      string `json:"status"`
	Total       int    `json:"total"`
	Done        int    `json:"done"`
	Failed      int    `json:"failed"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Build packages sourceDir plus the manifests. It refuses to emit an archive
// when nothing was ever produced: no source directory on disk and zero rows
// recorded either way would make a misleading empty artifact.
func (a *Archiver) Build(ctx context.Context, job domain.BatchJob, sourceDir string) (zipPath, zipURL string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	if _, statErr := os.Stat(sourceDir); os.IsNotExist(statErr) && job.Done == 0 && len(job.Errors) == 0 {
		return "", "", fmt.Errorf("%w: job %s produced no assets and no errors", domain.ErrEmptyArchive, job.ID)
	}

	name := a.archiveName(job)
	scratch := filepath.Join(a.store.ZipScratchPath(), name)

	builder, err := zip.Create(scratch)
	if err != nil {
		return "", "", err
	}
	ok := false
	defer func() {
		if !ok {
			_ = os.Remove(scratch)
		}
	}()

	added, err := builder.AddDir(sourceDir)
	if err != nil {
		_ = builder.Close()
		return "", "", err
	}

	if len(job.Errors) > 0 {
		manifest, merr := json.MarshalIndent(job.Errors, "", "  ")
		if merr != nil {
			_ = builder.Close()
			return "", "", fmt.Errorf("encode %s: %w", failedRowsEntry, merr)
		}
		if err := builder.AddBytes(failedRowsEntry, manifest); err != nil {
			_ = builder.Close()
			return "", "", err
		}
	}

	summary := archiveSummary{
		JobID:     job.ID,
		Model:     job.Model,
		Status:    string(job.Status),
		Total:     job.Total,
		Done:      job.Done,
		Failed:    job.Failed,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !job.CompletedAt.IsZero() {
		summary.CompletedAt = job.CompletedAt.UTC().Format(time.RFC3339)
	}
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		_ = builder.Close()
		return "", "", fmt.Errorf("encode %s: %w", summaryEntry, err)
	}
	if err := builder.AddBytes(summaryEntry, summaryJSON); err != nil {
		_ = builder.Close()
		return "", "", err
	}
	if err := builder.Close(); err != nil {
		return "", "", err
	}

	published, err := a.store.PublishDownload(scratch, name)
	if err != nil {
		return "", "", err
	}
	_ = os.Remove(scratch)
	ok = true

	a.logger.Debug().Str("job_id", job.ID).Str("zip", name).Int("assets", added).Msg("archive: built")
	return published, a.DownloadURL(name), nil
}

// archiveName encodes provenance into the filename: timestamp, a job ID
// fragment, completion tag and a <done>of<total> count. The ID fragment keeps
// concurrent jobs that finish within the same second from publishing under
// the same name.
func (a *Archiver) archiveName(job domain.BatchJob) string {
	tag := "complete"
	switch {
	case job.Failed > 0 || len(job.Errors) > 0:
		tag = "partial_with_errors"
	case job.Done < job.Total:
		tag = "partial"
	}
	return fmt.Sprintf("car-batch-%s-%s-%s-%dof%d.zip",
		a.now().UTC().Format("20060102-150405"), shortJobID(job.ID), tag, job.Done, job.Total)
}

func shortJobID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if id == "" {
		return "unknown"
	}
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}
