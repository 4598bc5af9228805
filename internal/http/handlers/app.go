package handlers

import (
	"encoding/json"
	"net/http"

	"carstudio/internal/batch"
	"carstudio/internal/infra"
	"carstudio/internal/registry"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Logger    infra.Logger
	Processor *batch.Processor
	Batches   registry.BatchRegistry
	Jobs      registry.JobRegistry
}

func NewApp(logger infra.Logger, processor *batch.Processor, batches registry.BatchRegistry, jobs registry.JobRegistry) *App {
	return &App{Logger: logger, Processor: processor, Batches: batches, Jobs: jobs}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
