// Package ingest consumes the remote service's event stream and records job
// status changes in the registry.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"imagine/internal/domain"
	"imagine/internal/metrics"
)

// ErrMalformedEvent is returned for frames that cannot be decoded as an event.
var ErrMalformedEvent = errors.New("malformed event")

// StatusWriter is the registry surface the ingestor writes to.
type StatusWriter interface {
	Set(jobID string, status domain.JobStatus) (domain.JobStatus, bool)
}

// Hooks lets a caller observe connection progress. Nil fields are skipped.
type Hooks struct {
	Connected func()
	Message   func()
}

type Options struct {
	URL      string
	Dialer   *websocket.Dialer
	Registry StatusWriter
	Logger   zerolog.Logger
	Metrics  metrics.Sink
}

// Ingestor holds one subscription to the event channel.
type Ingestor struct {
	url      string
	dialer   *websocket.Dialer
	registry StatusWriter
	logger   zerolog.Logger
	metrics  metrics.Sink
}

func New(opts Options) (*Ingestor, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("ingest: event stream url is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("ingest: registry is required")
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	sink := opts.Metrics
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	return &Ingestor{
		url:      opts.URL,
		dialer:   dialer,
		registry: opts.Registry,
		logger:   opts.Logger,
		metrics:  sink,
	}, nil
}

// Run connects and processes events until the connection fails, a frame is
// malformed, or ctx is cancelled. It always returns a non-nil error.
func (i *Ingestor) Run(ctx context.Context, hooks Hooks) error {
	conn, _, err := i.dialer.DialContext(ctx, i.url, nil)
	if err != nil {
		return fmt.Errorf("ingest: dial: %w", err)
	}
	defer conn.Close()

	// ReadMessage does not observe ctx; closing the conn unblocks it.
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer wg.Wait()
	defer close(done)

	i.logger.Info().Str("url", i.url).Msg("ingest: connected")
	if hooks.Connected != nil {
		hooks.Connected()
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ingest: read: %w", err)
		}
		if hooks.Message != nil {
			hooks.Message()
		}
		if kind != websocket.TextMessage {
			continue
		}
		if err := i.HandleMessage(data); err != nil {
			return err
		}
	}
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type execInfo struct {
	QueueRemaining *json.Number `json:"queue_remaining"`
}

type statusData struct {
	PromptID *string         `json:"prompt_id"`
	Status   json.RawMessage `json:"status"`
	ExecInfo *execInfo       `json:"exec_info"`
}

// HandleMessage classifies one text frame. Only "status" events are acted on;
// unknown status codes are dropped without error.
func (i *Ingestor) HandleMessage(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Type != "status" {
		i.metrics.EventReceived(metrics.EventKindIgnored)
		return nil
	}
	var sd statusData
	if err := json.Unmarshal(env.Data, &sd); err != nil {
		return fmt.Errorf("%w: status data: %v", ErrMalformedEvent, err)
	}

	if n, ok := queueRemaining(sd); ok {
		i.metrics.EventReceived(metrics.EventKindQueue)
		i.metrics.QueueRemaining(n)
		i.logger.Info().Int("queue_remaining", n).Msg("ingest: queue status")
		return nil
	}

	var code string
	if err := json.Unmarshal(sd.Status, &code); err != nil {
		i.metrics.EventReceived(metrics.EventKindIgnored)
		return nil
	}
	i.metrics.EventReceived(metrics.EventKindJobStatus)
	if sd.PromptID == nil || *sd.PromptID == "" {
		i.metrics.EventDropped(metrics.DropMissingPrompt)
		i.logger.Debug().Str("status", code).Msg("ingest: status event without prompt_id")
		return nil
	}
	status, ok := domain.ParseUpstreamStatus(code)
	if !ok {
		i.metrics.EventDropped(metrics.DropUnknownStatus)
		i.logger.Debug().Str("job_id", *sd.PromptID).Str("status", code).Msg("ingest: unknown status dropped")
		return nil
	}
	prev, _ := i.registry.Set(*sd.PromptID, status)
	i.logger.Debug().Str("job_id", *sd.PromptID).Str("from", prev.String()).Str("to", status.String()).Msg("ingest: status updated")
	return nil
}

// queueRemaining reads queue telemetry from either data.exec_info or
// data.status.exec_info.
func queueRemaining(sd statusData) (int, bool) {
	info := sd.ExecInfo
	if info == nil && len(sd.Status) > 0 && sd.Status[0] == '{' {
		var nested struct {
			ExecInfo *execInfo `json:"exec_info"`
		}
		if err := json.Unmarshal(sd.Status, &nested); err == nil {
			info = nested.ExecInfo
		}
	}
	if info == nil || info.QueueRemaining == nil {
		return 0, false
	}
	n, err := info.QueueRemaining.Int64()
	if err != nil {
		return 0, false
	}
	return int(n), true
}
