package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts session activity. A nil registerer yields working but
// unregistered collectors.
type Metrics struct {
	actions          *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	discardedUpdates prometheus.Counter
	appliedUpdates   prometheus.Counter
	loads            *prometheus.CounterVec
}

// NewMetrics creates the session collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		actions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dashx_session_actions_total",
			Help: "Total number of actions dispatched, by action.",
		}, []string{"action"}),
		rejected: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dashx_session_rejected_actions_total",
			Help: "Total number of actions rejected as no-ops, by action and reason.",
		}, []string{"action", "reason"}),
		discardedUpdates: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dashx_session_discarded_live_updates_total",
			Help: "Total number of live updates discarded because they arrived for a stale dashboard or during a snapshot.",
		}),
		appliedUpdates: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dashx_session_applied_live_updates_total",
			Help: "Total number of live updates written to the binding table.",
		}),
		loads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dashx_session_loads_total",
			Help: "Total number of dashboard, snapshot and catalog loads, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
}

const (
	loadKindCatalog   = "catalog"
	loadKindDashboard = "dashboard"
	loadKindSnapshot  = "snapshot"

	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeStale   = "stale"
)
