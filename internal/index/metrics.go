package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	indexedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notecheck_index_artifacts_indexed_total",
			Help: "Total number of artifacts indexed or re-indexed",
		},
	)

	removedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notecheck_index_artifacts_removed_total",
			Help: "Total number of artifacts removed from the index",
		},
	)

	artifactsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notecheck_index_artifacts",
			Help: "Number of artifacts currently indexed",
		},
	)
)

// refreshGauge sets the artifact gauge from the catalog. Errors leave the
// previous value in place.
func refreshGauge(db *DB) {
	if s, err := db.Stats(); err == nil {
		artifactsGauge.Set(float64(s.Artifacts))
	}
}
