package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	cleanups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ajiasud",
			Subsystem: "lifecycle",
			Name:      "cleanups_total",
			Help:      "Number of kill-all sweeps, labeled by trigger reason.",
		}, []string{"reason"},
	)
	killed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ajiasud",
			Subsystem: "lifecycle",
			Name:      "killed_total",
			Help:      "Number of connect processes confirmed dead.",
		},
	)
	killTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ajiasud",
			Subsystem: "lifecycle",
			Name:      "kill_timeouts_total",
			Help:      "Number of processes still alive after the kill window.",
		},
	)
	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ajiasud",
			Subsystem: "lifecycle",
			Name:      "launches_total",
			Help:      "Number of connect launches, labeled by trigger.",
		}, []string{"trigger"},
	)
	heals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ajiasud",
			Subsystem: "lifecycle",
			Name:      "heals_total",
			Help:      "Number of automatic reconnects from an empty inventory.",
		},
	)
	rotations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ajiasud",
			Subsystem: "lifecycle",
			Name:      "rotations_total",
			Help:      "Number of completed rotation cycles.",
		},
	)
	enforcerKills = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ajiasud",
			Subsystem: "lifecycle",
			Name:      "enforcer_kills_total",
			Help:      "Number of duplicate connect processes removed by the enforcer.",
		},
	)
	managedProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ajiasud",
			Subsystem: "lifecycle",
			Name:      "managed_processes",
			Help:      "Managed connect processes observed by the last scan.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{cleanups, killed, killTimeouts, launches, heals, rotations, enforcerKills, managedProcesses}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncCleanup(reason string) {
	if regOK.Load() {
		cleanups.WithLabelValues(reason).Inc()
	}
}
func AddKilled(n int) {
	if regOK.Load() && n > 0 {
		killed.Add(float64(n))
	}
}
func AddKillTimeouts(n int) {
	if regOK.Load() && n > 0 {
		killTimeouts.Add(float64(n))
	}
}
func IncLaunch(trigger string) {
	if regOK.Load() {
		launches.WithLabelValues(trigger).Inc()
	}
}
func IncHeal() {
	if regOK.Load() {
		heals.Inc()
	}
}
func IncRotation() {
	if regOK.Load() {
		rotations.Inc()
	}
}
func AddEnforcerKills(n int) {
	if regOK.Load() && n > 0 {
		enforcerKills.Add(float64(n))
	}
}
func SetManagedProcesses(n int) {
	if regOK.Load() {
		managedProcesses.Set(float64(n))
	}
}
