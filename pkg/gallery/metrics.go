package gallery

import (
	"imagehub/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"

	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
)

// Metrics counts workflow outcomes. A nil *Metrics records nothing.
type Metrics struct {
	uploads       *prometheus.CounterVec
	uploadedBytes prometheus.Counter
	deletions     *prometheus.CounterVec
	subscriptions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.uploads, err = metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "uploads_total",
		Help:      "Upload workflow runs by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.uploadedBytes, err = metrics.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Bytes stored by successful uploads, as reported by the object store.",
	})); err != nil {
		return nil, err
	}
	if m.deletions, err = metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "image_deletions_total",
		Help:      "Per-image deletions by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.subscriptions, err = metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "subscription_changes_total",
		Help:      "Topic subscription changes by action.",
	}, []string{"action"})); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) upload(outcome string) {
	if m != nil {
		m.uploads.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) uploadBytes(n int64) {
	if m != nil {
		m.uploadedBytes.Add(float64(n))
	}
}

func (m *Metrics) deletion(outcome string) {
	if m != nil {
		m.deletions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) subscription(action string) {
	if m != nil {
		m.subscriptions.WithLabelValues(action).Inc()
	}
}
