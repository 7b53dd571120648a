package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"imagine/internal/domain"
	"imagine/internal/imagine"
	"imagine/internal/middleware"
	"imagine/internal/workflow"
)

const (
	maxSubmitBody = 32 << 20

	msgInvalidBody   = "invalid request body"
	msgInvalidSubmit = "author prompt style can not be empty"
	msgInvalidSteps  = "steps must be greater than 0"
	msgSubmitFailed  = "submit task failed , please check your prompt"
	msgFetchFailed   = "fetch task failed , please check your prompt_id"
	msgNotFinished   = "task is not finish yet"
)

type submitRequest struct {
	Base64Array []string        `json:"base64_array"`
	Prompt      string          `json:"prompt"`
	Author      string          `json:"author"`
	Style       string          `json:"style"`
	Steps       *int            `json:"steps"`
	Workflow    json.RawMessage `json:"workflow"`
}

type taskResponse struct {
	TaskState string `json:"task_state"`
	ImgURL    string `json:"img_url"`
}

// SubmitImagine queues a generation job and returns its ID.
func (a *App) SubmitImagine(w http.ResponseWriter, r *http.Request) {
	log := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()

	var body submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody)).Decode(&body); err != nil {
		a.fail(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	req := imagine.Request{
		Prompt: body.Prompt,
		Author: body.Author,
		Style:  body.Style,
		Steps:  imagine.DefaultSteps,
	}
	if body.Steps != nil {
		req.Steps = *body.Steps
	}
	if raw := bytes.TrimSpace(body.Workflow); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		doc, err := workflow.Decode(raw)
		if err != nil {
			a.fail(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		req.Workflow = doc
	}

	jobID, err := a.Jobs.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSteps) {
			a.fail(w, http.StatusBadRequest, msgInvalidSteps)
			return
		}
		if errors.Is(err, domain.ErrInvalidRequest) {
			a.fail(w, http.StatusBadRequest, msgInvalidSubmit)
			return
		}
		log.Error().Err(err).Str("author", body.Author).Msg("submit failed")
		a.fail(w, http.StatusBadRequest, msgSubmitFailed)
		return
	}
	a.ok(w, jobID)
}

// FetchTask reports a job's state and, once stored, its artifact URL.
func (a *App) FetchTask(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	log := a.Logger.With().
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("job_id", jobID).
		Logger()

	res, err := a.Jobs.Resolve(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownJob) {
			log.Warn().Msg("fetch for unknown job")
		} else {
			log.Error().Err(err).Msg("fetch failed")
		}
		a.fail(w, http.StatusBadRequest, msgFetchFailed)
		return
	}

	switch {
	case res.FileName != "":
		a.ok(w, taskResponse{TaskState: res.Status.String(), ImgURL: a.PublicURL + "/" + res.FileName})
	case res.Status == domain.JobStatusExecutionFailed:
		a.ok(w, taskResponse{TaskState: res.Status.String()})
	default:
		a.ok(w, msgNotFinished)
	}
}
