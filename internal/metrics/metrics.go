// Package metrics holds the prometheus collectors for the sync engine and the
// dismissal cache. Collectors live on their own registry so tests can build
// as many as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK       = "ok"
	ResultEmpty    = "empty"
	ResultError    = "error"
	ResultSkipped  = "skipped"
	ResultDeclined = "declined"
)

type Metrics struct {
	registry *prometheus.Registry

	Polls      *prometheus.CounterVec
	Appended   prometheus.Counter
	Duplicates prometheus.Counter
	Dismissals *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashsync_polls_total",
			Help: "Message polls by result.",
		}, []string{"result"}),
		Appended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashsync_messages_appended_total",
			Help: "Messages appended to the transcript.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashsync_messages_duplicate_total",
			Help: "Messages dropped because their id was already incorporated.",
		}),
		Dismissals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashsync_dismissals_total",
			Help: "Outlier dismissals by variant and result.",
		}, []string{"variant", "result"}),
	}
	m.registry.MustRegister(m.Polls, m.Appended, m.Duplicates, m.Dismissals)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) poll(result string) {
	if m == nil {
		return
	}
	m.Polls.WithLabelValues(result).Inc()
}

// PollResult records the outcome of one poll.
func (m *Metrics) PollResult(result string) { m.poll(result) }

// MessagesAppended adds n appended messages.
func (m *Metrics) MessagesAppended(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Appended.Add(float64(n))
}

// DuplicatesDropped adds n dropped messages.
func (m *Metrics) DuplicatesDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Duplicates.Add(float64(n))
}

// Dismissal records one dismissal attempt.
func (m *Metrics) Dismissal(variant, result string) {
	if m == nil {
		return
	}
	m.Dismissals.WithLabelValues(variant, result).Inc()
}
