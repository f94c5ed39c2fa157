package obs

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the edit lock collectors.
type Metrics struct {
	HeartbeatTotal    *prometheus.CounterVec // result=claimed|conflict|not_found|error
	ReleaseTotal      *prometheus.CounterVec // result=released|noop|conflict|error
	ForceReleaseTotal prometheus.Counter
	EvaluateTotal     *prometheus.CounterVec // state=free|held_by_self|held_by_other

	OpLatencyMS *prometheus.HistogramVec // op=evaluate|heartbeat|release|force_release

	LocksActive  prometheus.Gauge
	ExpiredTotal prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HeartbeatTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editlock_heartbeat_total",
				Help: "Heartbeats by result",
			},
			[]string{"result"},
		),
		ReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editlock_release_total",
				Help: "Release attempts by result",
			},
			[]string{"result"},
		),
		ForceReleaseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "editlock_force_release_total",
			Help: "Locks cleared through the force-cancel action",
		}),
		EvaluateTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editlock_evaluate_total",
				Help: "Lock evaluations by resulting state",
			},
			[]string{"state"},
		),
		OpLatencyMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "editlock_op_latency_ms",
				Help:    "Latency of edit lock operations (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"op"},
		),
		LocksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "editlock_locks_active",
			Help: "Edit locks currently inside the lock window",
		}),
		ExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "editlock_expired_total",
			Help: "Stale edit locks removed by the sweeper",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.HeartbeatTotal,
			m.ReleaseTotal,
			m.ForceReleaseTotal,
			m.EvaluateTotal,
			m.OpLatencyMS,
			m.LocksActive,
			m.ExpiredTotal,
		)
	}
	return m
}
