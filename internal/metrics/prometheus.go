package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// PrometheusSink implements Sink with Prometheus collectors.
type PrometheusSink struct {
	eventsTotal      *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	queueRemaining   prometheus.Gauge
	connected        prometheus.Gauge
	reconnectsTotal  prometheus.Counter
	submissionsTotal *prometheus.CounterVec
	resolutionsTotal *prometheus.CounterVec
	registryEntries  prometheus.Gauge
}

// NewPrometheusSink creates the collectors and registers them with reg.
// Registration failures are logged; the collectors keep working unexported.
func NewPrometheusSink(reg prometheus.Registerer, logger zerolog.Logger) *PrometheusSink {
	s := &PrometheusSink{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagine_ingest_events_total",
			Help: "Events received on the remote event stream, by kind.",
		}, []string{"kind"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagine_ingest_events_dropped_total",
			Help: "Status events dropped without touching the registry.",
		}, []string{"reason"}),
		queueRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imagine_remote_queue_remaining",
			Help: "Last queue depth reported by the remote service.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imagine_ingest_connected",
			Help: "1 while the event stream connection is open.",
		}),
		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imagine_ingest_reconnects_total",
			Help: "Reconnect attempts after the event stream failed.",
		}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagine_submissions_total",
			Help: "Job submissions, by outcome.",
		}, []string{"outcome"}),
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagine_resolutions_total",
			Help: "Artifact resolutions, by outcome.",
		}, []string{"outcome"}),
		registryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imagine_registry_entries",
			Help: "Jobs tracked by the status registry.",
		}),
	}

	for _, c := range []prometheus.Collector{
		s.eventsTotal, s.eventsDropped, s.queueRemaining, s.connected,
		s.reconnectsTotal, s.submissionsTotal, s.resolutionsTotal, s.registryEntries,
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			logger.Warn().Err(err).Msg("metrics: register collector failed")
		}
	}
	return s
}

func (s *PrometheusSink) EventReceived(kind string) {
	s.eventsTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) EventDropped(reason string) {
	s.eventsDropped.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) QueueRemaining(n int) {
	s.queueRemaining.Set(float64(n))
}

func (s *PrometheusSink) IngestorConnected(connected bool) {
	if connected {
		s.connected.Set(1)
		return
	}
	s.connected.Set(0)
}

func (s *PrometheusSink) IngestorReconnect() {
	s.reconnectsTotal.Inc()
}

func (s *PrometheusSink) Submission(outcome string) {
	s.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) Resolution(outcome string) {
	s.resolutionsTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RegistrySize(n int) {
	s.registryEntries.Set(float64(n))
}

var _ Sink = (*PrometheusSink)(nil)
