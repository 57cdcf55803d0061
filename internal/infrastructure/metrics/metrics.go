package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"slMirror/internal/domain"
)

// Metrics cuenta los resultados del pipeline. Sólo observa: no cambia el
// comportamiento del pipeline.
type Metrics struct {
	received   prometheus.Counter
	malformed  prometheus.Counter
	mirrored   prometheus.Counter
	suppressed *prometheus.CounterVec
	classified *prometheus.CounterVec
	sinkErrors *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		received: f.NewCounter(prometheus.CounterOpts{
			Name: "slmirror_events_received_total",
			Help: "Total events received from the Streamlabs socket.",
		}),
		malformed: f.NewCounter(prometheus.CounterOpts{
			Name: "slmirror_events_malformed_total",
			Help: "Total events dropped because they had no message.",
		}),
		mirrored: f.NewCounter(prometheus.CounterOpts{
			Name: "slmirror_events_mirrored_total",
			Help: "Total events mirrored verbatim to the local bus.",
		}),
		suppressed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slmirror_entries_suppressed_total",
			Help: "Total message entries suppressed by policy.",
		}, []string{"reason"}),
		classified: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slmirror_entries_classified_total",
			Help: "Total message entries by recipient domain and classification.",
		}, []string{"domain", "classification"}),
		sinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slmirror_sink_errors_total",
			Help: "Total sink failures by sink.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) EventReceived()  { m.received.Inc() }
func (m *Metrics) EventMalformed() { m.malformed.Inc() }
func (m *Metrics) EventMirrored()  { m.mirrored.Inc() }

func (m *Metrics) EntrySuppressed(reason string) {
	m.suppressed.WithLabelValues(reason).Inc()
}

func (m *Metrics) EntryClassified(recipientDomain string, c domain.Classification) {
	// Dominios desconocidos vienen del payload; se agrupan para no crear series sin límite.
	switch recipientDomain {
	case domain.DomainStreamlabs, domain.DomainTwitchAccount:
	default:
		recipientDomain = "other"
	}
	m.classified.WithLabelValues(recipientDomain, string(c)).Inc()
}

func (m *Metrics) SinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}
