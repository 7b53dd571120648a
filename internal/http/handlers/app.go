package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"imagine/internal/imagine"
	"imagine/internal/ingest"
)

// JobService submits and resolves generation jobs.
type JobService interface {
	Submit(ctx context.Context, req imagine.Request) (string, error)
	Resolve(ctx context.Context, jobID string) (imagine.Result, error)
}

// FileOpener opens stored artifacts by name.
type FileOpener interface {
	Open(name string) (*os.File, os.FileInfo, error)
}

// HealthReporter exposes the event stream health.
type HealthReporter interface {
	Health() ingest.Health
}

// Sizer reports how many jobs are tracked.
type Sizer interface {
	Len() int
}

type App struct {
	Jobs      JobService
	Files     FileOpener
	Stream    HealthReporter
	Registry  Sizer
	PublicURL string
	Logger    zerolog.Logger
}

// envelope is the response body shared by the job endpoints.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

const (
	codeOK     = 200
	codeFailed = 500
)

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) ok(w http.ResponseWriter, data any) {
	a.json(w, http.StatusOK, envelope{Code: codeOK, Message: "Success", Data: data})
}

func (a *App) fail(w http.ResponseWriter, status int, message string) {
	a.json(w, status, envelope{Code: codeFailed, Message: message})
}
