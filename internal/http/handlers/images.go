package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carstudio/internal/domain"
)

type imageGenerateRequest struct {
	Make        string `json:"make"`
	Model       string `json:"model"`
	BodyStyle   string `json:"body_style"`
	Trim        string `json:"trim"`
	Year        string `json:"year"`
	Color       string `json:"color"`
	Background  string `json:"background"`
	AspectRatio string `json:"aspect_ratio"`
}

// ImagesGenerate queues a single-image generation job sharing the batch
// queue's worker slots.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	var req imageGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	id, err := a.Processor.EnqueueImage(domain.Row{
		Make:        req.Make,
		Model:       req.Model,
		BodyStyle:   req.BodyStyle,
		Trim:        req.Trim,
		Year:        req.Year,
		Color:       req.Color,
		Background:  req.Background,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		if errors.Is(err, domain.ErrQueueFull) {
			a.error(w, http.StatusServiceUnavailable, "queue_full", "processing queue is full, retry later")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: enqueue image failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{
		"job_id": id,
		"status": string(domain.JobStatusPending),
	})
}

// JobStatus reports the state of a single-image job.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := a.Jobs.Snapshot(id)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	resp := map[string]any{
		"id":         snap.ID,
		"status":     string(snap.Status),
		"created_at": snap.CreatedAt.UTC().Format(time.RFC3339),
	}
	if len(snap.Result) > 0 {
		resp["result"] = snap.Result
	}
	if snap.Error != "" {
		resp["error"] = snap.Error
	}
	a.json(w, http.StatusOK, resp)
}
