package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"imagine/internal/metrics"
)

// Runner is one connection attempt; *Ingestor satisfies it.
type Runner interface {
	Run(ctx context.Context, hooks Hooks) error
}

// State is the supervisor's view of the event stream.
type State string

const (
	StateStarting     State = "starting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateStopped      State = "stopped"
)

// Health is a point-in-time snapshot of the event stream.
type Health struct {
	State       State      `json:"state"`
	Reconnects  int        `json:"reconnects"`
	LastError   string     `json:"last_error,omitempty"`
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
	Since       time.Time  `json:"since"`
}

// Healthy reports whether the stream is currently connected.
func (h Health) Healthy() bool {
	return h.State == StateConnected
}

// Supervisor keeps a Runner alive for the lifetime of a context,
// reconnecting with backoff after every failure.
type Supervisor struct {
	runner  Runner
	backoff Backoff
	logger  zerolog.Logger
	metrics metrics.Sink
	now     func() time.Time

	mu     sync.Mutex
	health Health
}

func NewSupervisor(runner Runner, backoff Backoff, logger zerolog.Logger, sink metrics.Sink) *Supervisor {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	s := &Supervisor{
		runner:  runner,
		backoff: backoff,
		logger:  logger,
		metrics: sink,
		now:     time.Now,
	}
	s.health = Health{State: StateStarting, Since: s.now()}
	return s
}

// Health returns the current snapshot.
func (s *Supervisor) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.health
	if h.LastEventAt != nil {
		t := *h.LastEventAt
		h.LastEventAt = &t
	}
	return h
}

// Run blocks until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	attempt := 0
	for {
		var received bool
		err := s.runner.Run(ctx, Hooks{
			Connected: func() { s.setState(StateConnected, nil) },
			Message: func() {
				received = true
				s.markEvent()
			},
		})
		if ctx.Err() != nil {
			s.setState(StateStopped, nil)
			s.metrics.IngestorConnected(false)
			s.logger.Info().Msg("ingest: supervisor stopped")
			return ctx.Err()
		}
		if err == nil {
			err = errors.New("ingest: event stream closed")
		}
		if received {
			attempt = 0
		}
		wait := s.backoff.Next(attempt)
		attempt++

		s.setState(StateReconnecting, err)
		s.metrics.IngestorConnected(false)
		s.logger.Error().Err(err).Dur("retry_in", wait).Int("attempt", attempt).Msg("ingest: event stream lost")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setState(StateStopped, nil)
			s.logger.Info().Msg("ingest: supervisor stopped")
			return ctx.Err()
		case <-timer.C:
		}
		s.metrics.IngestorReconnect()
	}
}

func (s *Supervisor) setState(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == StateReconnecting {
		s.health.Reconnects++
	}
	if err != nil {
		s.health.LastError = err.Error()
	}
	if state == StateConnected {
		s.metrics.IngestorConnected(true)
	}
	s.health.State = state
	s.health.Since = s.now()
}

func (s *Supervisor) markEvent() {
	t := s.now()
	s.mu.Lock()
	s.health.LastEventAt = &t
	s.mu.Unlock()
}
