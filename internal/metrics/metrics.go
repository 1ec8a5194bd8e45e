// Package metrics provides Prometheus metrics for resolution, playback and
// sandbox activity. Labels never carry catalog or session ids.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolveTotal counts resolutions by provider and outcome (ok, unknown_provider, incomplete).
	ResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidframe",
		Name:      "resolve_total",
		Help:      "Embed URL resolutions, by provider and outcome.",
	}, []string{"provider", "outcome"})

	// TransitionTotal counts playback transitions by name.
	TransitionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidframe",
		Name:      "playback_transition_total",
		Help:      "Playback state machine transitions, by transition.",
	}, []string{"transition"})

	// ReloadTotal counts forced iframe reloads that completed.
	ReloadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vidframe",
		Name:      "playback_reload_total",
		Help:      "Completed ready-flag reload cycles.",
	})

	// MetadataErrorTotal counts failed catalog fetches by operation.
	MetadataErrorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidframe",
		Name:      "metadata_error_total",
		Help:      "Failed metadata fetches, by operation (seasons, episodes).",
	}, []string{"op"})

	// ActiveSessions tracks open playback sessions in the server.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vidframe",
		Name:      "playback_sessions_active",
		Help:      "Open playback sessions.",
	})

	// SandboxSessions tracks live sandbox sessions.
	SandboxSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vidframe",
		Name:      "sandbox_sessions_active",
		Help:      "Live sandbox sessions attached to mounted frames.",
	})

	// SandboxBlockedTotal counts blocked popup/navigation attempts by source (guard, beforeunload).
	SandboxBlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidframe",
		Name:      "sandbox_blocked_total",
		Help:      "Blocked popup or navigation attempts, by source.",
	}, []string{"source"})

	// SandboxInjectTotal counts injection attempts by result (ok, skipped).
	SandboxInjectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidframe",
		Name:      "sandbox_inject_total",
		Help:      "Blocker script injection attempts, by result.",
	}, []string{"result"})
)

// ResolveOutcome labels a resolution result.
func ResolveOutcome(provider, outcome string) {
	ResolveTotal.WithLabelValues(provider, outcome).Inc()
}
