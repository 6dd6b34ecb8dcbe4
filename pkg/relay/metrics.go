package relay

import (
	"imagehub/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts ticks and messages. A nil *Metrics records nothing.
type Metrics struct {
	ticks    *prometheus.CounterVec
	messages *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	ticks, err := metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "relay",
		Name:      "ticks_total",
		Help:      "Relay ticks by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	messages, err := metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "relay",
		Name:      "messages_total",
		Help:      "Queue messages handled by the relay, by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	return &Metrics{ticks: ticks, messages: messages}, nil
}

func (m *Metrics) tick(result string) {
	if m != nil {
		m.ticks.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) message(outcome string) {
	if m != nil {
		m.messages.WithLabelValues(outcome).Inc()
	}
}
