package telemetry

import "github.com/prometheus/client_golang/prometheus"

// TokensIssuedTotal counts successfully issued tokens by grant type.
var TokensIssuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "meetplane",
		Subsystem: "tokens",
		Name:      "issued_total",
		Help:      "Total number of tokens issued, by grant type.",
	},
	[]string{"grant_type"},
)

// TokenFailuresTotal counts failed token-issue attempts by reason.
var TokenFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "meetplane",
		Subsystem: "tokens",
		Name:      "failures_total",
		Help:      "Total number of failed token-issue attempts, by reason.",
	},
	[]string{"reason"},
)

// KeyRotationsTotal counts signing-key rotations by outcome.
var KeyRotationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "meetplane",
		Subsystem: "keys",
		Name:      "rotations_total",
		Help:      "Total number of signing-key rotation attempts, by outcome.",
	},
	[]string{"outcome"},
)

// MeetingsCreatedTotal counts meeting-creation outcomes.
var MeetingsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "meetplane",
		Subsystem: "meetings",
		Name:      "created_total",
		Help:      "Total number of meeting creation attempts, by outcome.",
	},
	[]string{"outcome"},
)

// AssignmentsTotal counts MC/MH assignment outcomes.
var AssignmentsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "meetplane",
		Subsystem: "assignments",
		Name:      "total",
		Help:      "Total number of meeting assignment attempts, by outcome.",
	},
	[]string{"outcome"},
)

// RegistryHealthTransitionsTotal counts MC/MH health-status transitions.
var RegistryHealthTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "meetplane",
		Subsystem: "registry",
		Name:      "health_transitions_total",
		Help:      "Total number of MC/MH health status transitions, by kind and new status.",
	},
	[]string{"kind", "status"},
)

// JWKSCacheRefreshTotal counts JWKS cache refresh outcomes.
var JWKSCacheRefreshTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "meetplane",
		Subsystem: "jwks_cache",
		Name:      "refresh_total",
		Help:      "Total number of JWKS cache refresh attempts, by outcome.",
	},
	[]string{"outcome"},
)

// All returns all meetplane-specific metrics for registration, in addition
// to the ambient HTTP histogram registered by httpserver.MetricsCollectors.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		TokensIssuedTotal,
		TokenFailuresTotal,
		KeyRotationsTotal,
		MeetingsCreatedTotal,
		AssignmentsTotal,
		RegistryHealthTransitionsTotal,
		JWKSCacheRefreshTotal,
	}
}
