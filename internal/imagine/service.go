// Package imagine submits generation jobs to the remote workflow service and
// resolves their finished artifacts.
package imagine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"imagine/internal/comfy"
	"imagine/internal/domain"
	"imagine/internal/metrics"
	"imagine/internal/workflow"
)

// DefaultSteps is used when a request leaves steps unset.
const DefaultSteps = 4

// Remote is the subset of the workflow service the Service calls.
type Remote interface {
	QueuePrompt(ctx context.Context, doc any) (string, error)
	History(ctx context.Context, promptID string) (*comfy.History, bool, error)
	View(ctx context.Context, ref comfy.ImageRef) ([]byte, error)
}

// Registry is the status store shared with the event ingestor.
type Registry interface {
	Get(jobID string) (domain.JobStatus, bool)
	Set(jobID string, status domain.JobStatus) (domain.JobStatus, bool)
	SetUnlessTerminal(jobID string, status domain.JobStatus) (domain.JobStatus, bool)
	Len() int
}

// ArtifactStore persists finished images.
type ArtifactStore interface {
	Exists(key string) bool
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// TemplateSource returns the default job template.
type TemplateSource func() (any, error)

// FileTemplate reads the template at path on every call.
func FileTemplate(path string) TemplateSource {
	return func() (any, error) { return workflow.LoadFile(path) }
}

// Request is one submission.
type Request struct {
	Prompt   string
	Author   string
	Style    string
	Steps    int
	Workflow any
}

// Result describes a job after resolution. FileName is empty while no
// artifact exists.
type Result struct {
	Status   domain.JobStatus
	FileName string
}

type Options struct {
	Remote    Remote
	Registry  Registry
	Store     ArtifactStore
	Template  TemplateSource
	ClientID  string
	ModelFile string
	ClipNames [3]string

	PromptTextPath workflow.Path
	StepsPath      workflow.Path

	Logger  zerolog.Logger
	Metrics metrics.Sink
}

type Service struct {
	opts Options
	log  zerolog.Logger
	sink metrics.Sink
}

func NewService(opts Options) (*Service, error) {
	switch {
	case opts.Remote == nil:
		return nil, errors.New("imagine: remote is required")
	case opts.Registry == nil:
		return nil, errors.New("imagine: registry is required")
	case opts.Store == nil:
		return nil, errors.New("imagine: artifact store is required")
	case opts.Template == nil:
		return nil, errors.New("imagine: template source is required")
	case strings.TrimSpace(opts.ClientID) == "":
		return nil, errors.New("imagine: client id is required")
	}
	sink := opts.Metrics
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	return &Service{
		opts: opts,
		log:  opts.Logger.With().Str("component", "imagine").Logger(),
		sink: sink,
	}, nil
}

// Submit materializes the request into a job document, queues it on the
// remote service and records it as submitted.
func (s *Service) Submit(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		s.sink.Submission(metrics.OutcomeInvalid)
		return "", err
	}

	template := req.Workflow
	if template == nil {
		loaded, err := s.opts.Template()
		if err != nil {
			s.sink.Submission(metrics.OutcomeFailed)
			return "", fmt.Errorf("load template: %w", err)
		}
		template = loaded
	}

	workflowID := uuid.NewString()
	doc, err := workflow.Materialize(template, workflow.Params{
		PromptText:     norm.NFC.String(req.Prompt + "," + req.Style),
		Steps:          req.Steps,
		ModelFile:      s.opts.ModelFile,
		ClipNames:      s.opts.ClipNames,
		ClientID:       s.opts.ClientID,
		WorkflowID:     workflowID,
		PromptTextPath: s.opts.PromptTextPath,
		StepsPath:      s.opts.StepsPath,
	})
	if err != nil {
		s.sink.Submission(metrics.OutcomeFailed)
		return "", err
	}

	jobID, err := s.opts.Remote.QueuePrompt(ctx, doc)
	if err != nil {
		s.sink.Submission(metrics.OutcomeFailed)
		return "", fmt.Errorf("queue prompt: %w", err)
	}

	s.opts.Registry.Set(jobID, domain.JobStatusSubmitted)
	s.sink.Submission(metrics.OutcomeSuccess)
	s.sink.RegistrySize(s.opts.Registry.Len())
	s.log.Info().
		Str("job_id", jobID).
		Str("workflow_id", workflowID).
		Str("author", req.Author).
		Int("steps", req.Steps).
		Msg("job submitted")
	return jobID, nil
}

func validate(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" || strings.TrimSpace(req.Author) == "" || strings.TrimSpace(req.Style) == "" {
		return fmt.Errorf("%w: prompt, author and style are required", domain.ErrInvalidRequest)
	}
	if req.Steps <= 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, domain.ErrInvalidSteps)
	}
	return nil
}

// ArtifactName is the file name a finished job's image is stored under.
func ArtifactName(jobID string) string {
	return jobID + ".png"
}

// Resolve reports the status of jobID and, once the remote has produced
// images, stores them locally and returns the artifact's file name.
// A stored artifact short-circuits every remote call.
func (s *Service) Resolve(ctx context.Context, jobID string) (Result, error) {
	current, ok := s.opts.Registry.Get(jobID)
	if !ok {
		s.sink.Resolution(metrics.OutcomeUnknown)
		return Result{}, fmt.Errorf("%w: %s", domain.ErrUnknownJob, jobID)
	}

	name := ArtifactName(jobID)
	if s.opts.Store.Exists(name) {
		s.sink.Resolution(metrics.OutcomeCached)
		return Result{Status: current, FileName: name}, nil
	}

	history, found, err := s.opts.Remote.History(ctx, jobID)
	if err != nil {
		s.sink.Resolution(metrics.OutcomeFailed)
		return Result{}, fmt.Errorf("fetch history: %w", err)
	}
	if !found {
		s.sink.Resolution(metrics.OutcomePending)
		return Result{Status: current}, nil
	}

	image, count, err := s.collect(ctx, history)
	if err != nil {
		s.sink.Resolution(metrics.OutcomeFailed)
		return Result{}, err
	}
	if count == 0 {
		s.sink.Resolution(metrics.OutcomePending)
		return Result{Status: current}, nil
	}

	if _, err := s.opts.Store.Write(ctx, name, image); err != nil {
		s.sink.Resolution(metrics.OutcomeFailed)
		return Result{}, fmt.Errorf("store artifact: %w", err)
	}

	status, applied := s.opts.Registry.SetUnlessTerminal(jobID, domain.JobStatusExecutionSuccess)
	s.log.Info().
		Str("job_id", jobID).
		Str("status", status.String()).
		Bool("status_updated", applied).
		Int("images", count).
		Msg("artifact stored")
	s.sink.Resolution(metrics.OutcomeSuccess)
	return Result{Status: status, FileName: name}, nil
}

// collect downloads every output image, visiting nodes by ID, and returns
// their concatenated bytes.
func (s *Service) collect(ctx context.Context, h *comfy.History) ([]byte, int, error) {
	nodeIDs := make([]string, 0, len(h.Outputs))
	for id := range h.Outputs {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	var buf bytes.Buffer
	count := 0
	for _, id := range nodeIDs {
		for _, ref := range h.Outputs[id].Images {
			data, err := s.opts.Remote.View(ctx, ref)
			if err != nil {
				return nil, 0, fmt.Errorf("fetch image %s from node %s: %w", ref.Filename, id, err)
			}
			buf.Write(data)
			count++
		}
	}
	return buf.Bytes(), count, nil
}
