package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters.
type Metrics struct {
	passes            *prometheus.CounterVec
	eventsSeen        *prometheus.CounterVec
	actionsSubmitted  *prometheus.CounterVec
	duplicatesSkipped *prometheus.CounterVec
	errors            *prometheus.CounterVec
	cursorHeight      *prometheus.GaugeVec
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = New(prometheus.DefaultRegisterer)
	})
	return metrics
}

// New builds and registers a metric set on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_passes_total",
			Help: "Relay passes by direction and outcome",
		}, []string{"direction", "outcome"}),
		eventsSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_events_seen_total",
			Help: "Bridge events fetched from the watched chain",
		}, []string{"direction"}),
		actionsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_actions_submitted_total",
			Help: "Transactions accepted by the target chain",
		}, []string{"direction"}),
		duplicatesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_duplicates_skipped_total",
			Help: "Events skipped because they were already handled",
		}, []string{"direction"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_errors_total",
			Help: "Errors by kind",
		}, []string{"kind"}),
		cursorHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "warden_cursor_height",
			Help: "Last scanned block height per chain",
		}, []string{"chain"}),
	}
	reg.MustRegister(
		m.passes,
		m.eventsSeen,
		m.actionsSubmitted,
		m.duplicatesSkipped,
		m.errors,
		m.cursorHeight,
	)
	return m
}

// Pass counts a finished pass.
func (m *Metrics) Pass(direction, outcome string) {
	if m != nil {
		m.passes.WithLabelValues(direction, outcome).Inc()
	}
}

// EventsSeen adds n fetched events.
func (m *Metrics) EventsSeen(direction string, n int) {
	if m != nil && n > 0 {
		m.eventsSeen.WithLabelValues(direction).Add(float64(n))
	}
}

// ActionSubmitted increments the submitted counter.
func (m *Metrics) ActionSubmitted(direction string) {
	if m != nil {
		m.actionsSubmitted.WithLabelValues(direction).Inc()
	}
}

// DuplicateSkipped increments the duplicates counter.
func (m *Metrics) DuplicateSkipped(direction string) {
	if m != nil {
		m.duplicatesSkipped.WithLabelValues(direction).Inc()
	}
}

// Error increments the errors counter for kind.
func (m *Metrics) Error(kind string) {
	if m != nil {
		m.errors.WithLabelValues(kind).Inc()
	}
}

// CursorHeight records the cursor of chain.
func (m *Metrics) CursorHeight(chain string, height uint64) {
	if m != nil {
		m.cursorHeight.WithLabelValues(chain).Set(float64(height))
	}
}

// Handler returns an HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
