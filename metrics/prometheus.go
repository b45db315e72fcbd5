package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the engine collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "operations_total",
			Help:      "Payment engine operations by outcome",
		},
		[]string{"operation", LabelOutcome, LabelAsset},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payments",
			Name:      "operation_duration_seconds",
			Help:      "Payment engine operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	for _, c := range []prometheus.Collector{counters, histogram} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register payments metrics: %w", err)
		}
	}

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}, nil
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"operation":  name,
		LabelOutcome: labels[LabelOutcome],
		LabelAsset:   labels[LabelAsset],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, _ map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
	}).Observe(d.Seconds())
}
