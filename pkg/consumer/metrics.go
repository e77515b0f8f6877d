package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts message outcomes. One instance per consumer process.
type Metrics struct {
	Processed prometheus.Counter
	Discarded prometheus.Counter
	Poison    prometheus.Counter
	Requeued  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reana",
			Subsystem: "job_status_consumer",
			Name:      "messages_processed_total",
			Help:      "Messages applied to a run.",
		}),
		Discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reana",
			Subsystem: "job_status_consumer",
			Name:      "messages_discarded_total",
			Help:      "Messages for deleted or stopped runs, dropped.",
		}),
		Poison: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reana",
			Subsystem: "job_status_consumer",
			Name:      "messages_poison_total",
			Help:      "Messages that can never be processed, acked away.",
		}),
		Requeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reana",
			Subsystem: "job_status_consumer",
			Name:      "messages_requeued_total",
			Help:      "Messages returned to the queue after a transient failure.",
		}),
	}
	reg.MustRegister(m.Processed, m.Discarded, m.Poison, m.Requeued)
	return m
}
