package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carstudio/internal/carcsv"
	"carstudio/internal/domain"
)

// maxUploadBytes caps the multipart form held in memory; a 50-row CSV is a
// few kilobytes, so this is generous.
const maxUploadBytes = 4 << 20

type batchCreateResponse struct {
	JobID string `json:"job_id"`
}

type batchStatusResponse struct {
	Total   int               `json:"total"`
	Done    int               `json:"done"`
	Failed  int               `json:"failed"`
	Percent int               `json:"percent"`
	Status  string            `json:"status"`
	ZipURL  *string           `json:"zip_url"`
	Errors  []domain.RowError `json:"errors,omitempty"`
}

// CarBatchCreate accepts a CSV upload, validates it synchronously and queues
// the batch. The response returns the job ID immediately; progress is
// observed via BatchStatus.
func (a *App) CarBatchCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "csv file is required")
		return
	}
	defer file.Close()

	rows, err := carcsv.ParseRows(file)
	if err != nil {
		switch {
		case errors.Is(err, carcsv.ErrTooFewRows), errors.Is(err, carcsv.ErrTooManyRows):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		default:
			a.error(w, http.StatusBadRequest, "bad_request", "csv parse error: "+err.Error())
		}
		return
	}

	id, err := a.Processor.EnqueueBatch(rows)
	if err != nil {
		if errors.Is(err, domain.ErrQueueFull) {
			a.error(w, http.StatusServiceUnavailable, "queue_full", "processing queue is full, retry later")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: enqueue batch failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue batch")
		return
	}
	a.json(w, http.StatusAccepted, batchCreateResponse{JobID: id})
}

// BatchStatus reports progress for one batch job.
func (a *App) BatchStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := a.Batches.Snapshot(id)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "batch job not found")
		return
	}

	percent := 0
	if snap.Total > 0 {
		percent = (snap.Done + snap.Failed) * 100 / snap.Total
	}
	resp := batchStatusResponse{
		Total:   snap.Total,
		Done:    snap.Done,
		Failed:  snap.Failed,
		Percent: percent,
		Status:  string(snap.Status),
		Errors:  snap.Errors,
	}
	if snap.ZipURL != "" {
		resp.ZipURL = &snap.ZipURL
	}
	a.json(w, http.StatusOK, resp)
}

// BatchStop requests cooperative cancellation of a processing batch.
func (a *App) BatchStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch err := a.Processor.Stop(id); {
	case err == nil:
		a.json(w, http.StatusOK, map[string]string{"status": string(domain.BatchStatusStopped)})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "batch job not found")
	case errors.Is(err, domain.ErrJobNotStoppable):
		a.error(w, http.StatusBadRequest, "bad_request", "job is not processing")
	default:
		a.error(w, http.StatusInternalServerError, "internal", "failed to stop job")
	}
}
