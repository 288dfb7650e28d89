package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics are the store's prometheus instruments.
type metrics struct {
	mutations   *prometheus.CounterVec
	records     prometheus.Gauge
	mergeAdded  prometheus.Counter
	persistTime prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glyco",
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Store mutations by operation and result.",
		}, []string{"op", "result"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "glyco",
			Subsystem: "store",
			Name:      "records",
			Help:      "Number of records currently held.",
		}),
		mergeAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glyco",
			Subsystem: "store",
			Name:      "merge_added_total",
			Help:      "Records added by merging external samples.",
		}),
		persistTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "glyco",
			Subsystem: "store",
			Name:      "persist_seconds",
			Help:      "Time spent writing the durable snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(m.mutations, m.records, m.mergeAdded, m.persistTime)
	return m
}

func (m *metrics) mutation(op, result string) {
	m.mutations.WithLabelValues(op, result).Inc()
}
