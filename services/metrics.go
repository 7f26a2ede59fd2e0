package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	projectMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rpmt",
			Name:      "project_mutations_total",
			Help:      "Project create/update/delete operations by outcome.",
		},
		[]string{"op", "outcome"},
	)
	orphansSwept = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rpmt",
			Name:      "orphans_swept_total",
			Help:      "Authors and editors removed by the orphan sweeper.",
		},
		[]string{"kind"},
	)
	storageOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rpmt",
			Name:      "storage_operations_total",
			Help:      "Object storage uploads and deletions by result.",
		},
		[]string{"op", "result"},
	)
	outboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rpmt",
			Name:      "outbox_pending_deletions",
			Help:      "Storage objects still waiting for deletion after the last drain.",
		},
	)
	citationsUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rpmt",
			Name:      "citation_counts_updated_total",
			Help:      "Projects whose citation count was raised by the citation refresh job.",
		},
	)
)

// RegisterMetrics registriert die Service-Metriken beim Standard-Registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(projectMutations, orphansSwept, storageOps, outboxPending, citationsUpdated)
	})
}

func recordStorage(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storageOps.WithLabelValues(op, result).Inc()
}

func recordMutation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	projectMutations.WithLabelValues(op, outcome).Inc()
}
