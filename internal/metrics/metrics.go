// Package metrics exposes Prometheus counters for hosted games.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quizhost"

// Metrics holds the host-side counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CommandsSent     *prometheus.CounterVec
	EventsReceived   *prometheus.CounterVec
	SessionsFinished *prometheus.CounterVec
	Players          prometheus.Gauge
}

// New registers the host metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CommandsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "commands_sent_total",
				Help:      "Commands the host attempted to send, by type and outcome",
			},
			[]string{"type", "sent"},
		),
		EventsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "events_received_total",
				Help:      "Server events received, by type",
			},
			[]string{"type"},
		),
		SessionsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "sessions_finished_total",
				Help:      "Hosted sessions that left the active phases, by outcome",
			},
			[]string{"outcome"},
		),
		Players: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "lobby",
				Name:      "players",
				Help:      "Players currently in the roster",
			},
		),
	}
}

func (m *Metrics) CommandSent(cmd string, sent bool) {
	if m == nil {
		return
	}
	m.CommandsSent.WithLabelValues(cmd, strconv.FormatBool(sent)).Inc()
}

func (m *Metrics) EventReceived(eventType string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(eventType).Inc()
}

func (m *Metrics) SessionFinished(outcome string) {
	if m == nil {
		return
	}
	m.SessionsFinished.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetPlayers(n int) {
	if m == nil {
		return
	}
	m.Players.Set(float64(n))
}
