package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. It satisfies
// the mutation executor's Recorder interface.
type Metrics struct {
	MutationsCommitted *prometheus.CounterVec
	MutationsFailed    *prometheus.CounterVec
	RankCacheHits      prometheus.Counter
	RankCacheMisses    prometheus.Counter
	AuditEventsDropped prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		MutationsCommitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_mutations_committed_total",
			Help: "Total number of committed graph mutations",
		}, []string{"intent"}),
		MutationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_mutations_failed_total",
			Help: "Total number of failed graph mutations by stage",
		}, []string{"intent", "stage"}),
		RankCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracker_rank_cache_hits_total",
			Help: "Total number of permission rank cache hits",
		}),
		RankCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracker_rank_cache_misses_total",
			Help: "Total number of permission rank cache misses",
		}),
		AuditEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracker_audit_events_dropped_total",
			Help: "Total number of audit events dropped on a full inbox",
		}),
	}
}

// MutationCommitted records one committed mutation.
func (m *Metrics) MutationCommitted(intent string) {
	m.MutationsCommitted.WithLabelValues(intentLabel(intent)).Inc()
}

// MutationFailed records one failed mutation tagged with its stage.
func (m *Metrics) MutationFailed(intent string, stage string) {
	m.MutationsFailed.WithLabelValues(intentLabel(intent), stage).Inc()
}

// intentLabel collapses free-form intents to their leading verb phrase,
// e.g. "update role of user <key> ..." becomes "update role". Keys and
// other identifiers must never become label values.
func intentLabel(intent string) string {
	words := strings.Fields(intent)
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}
