// Package metrics defines the Prometheus collectors for discovery and
// control sessions.
//
// Collectors are created per process with New and handed to the components
// that update them. A nil *Collectors is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rendercast"

// Command outcome labels.
const (
	OutcomeOK             = "ok"
	OutcomeProtocolError  = "protocol_error"
	OutcomeTimeout        = "timeout"
	OutcomeConnectionLost = "connection_lost"
	OutcomeDenied         = "denied"
)

// Collectors holds every metric the module exports.
type Collectors struct {
	devicesTracked  prometheus.Gauge
	devicesSurfaced prometheus.Gauge
	providerEvents  *prometheus.CounterVec
	providerErrors  *prometheus.CounterVec

	sessionsRegistered prometheus.Gauge
	sessionTransitions *prometheus.CounterVec
	commands           *prometheus.CounterVec
	commandLatency     prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration (useful in tests).
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		devicesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "devices_tracked",
			Help:      "Number of devices in the discovery registry.",
		}),
		devicesSurfaced: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "devices_surfaced",
			Help:      "Number of tracked devices that pass the capability filters.",
		}),
		providerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "provider_events_total",
			Help:      "Service events reported by discovery providers.",
		}, []string{"provider", "kind"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "provider_errors_total",
			Help:      "Discovery provider failures.",
		}, []string{"provider"}),
		sessionsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "registered",
			Help:      "Number of control sessions in the registered state.",
		}),
		sessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state_transitions_total",
			Help:      "Control session state transitions by target state.",
		}, []string{"state"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "commands_total",
			Help:      "Completed control session commands by outcome.",
		}, []string{"outcome"}),
		commandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "command_duration_seconds",
			Help:      "Time from sending a command to its first response.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.devicesTracked,
			c.devicesSurfaced,
			c.providerEvents,
			c.providerErrors,
			c.sessionsRegistered,
			c.sessionTransitions,
			c.commands,
			c.commandLatency,
		)
	}
	return c
}

// SetDevices records the registry size and how many devices are surfaced.
func (c *Collectors) SetDevices(tracked, surfaced int) {
	if c == nil {
		return
	}
	c.devicesTracked.Set(float64(tracked))
	c.devicesSurfaced.Set(float64(surfaced))
}

// ProviderEvent counts one provider event (added, updated, removed).
func (c *Collectors) ProviderEvent(provider, kind string) {
	if c == nil {
		return
	}
	c.providerEvents.WithLabelValues(provider, kind).Inc()
}

// ProviderError counts one provider failure.
func (c *Collectors) ProviderError(provider string) {
	if c == nil {
		return
	}
	c.providerErrors.WithLabelValues(provider).Inc()
}

// SessionState records a session transition. registeredDelta is +1 when a
// session enters the registered state and -1 when it leaves it.
func (c *Collectors) SessionState(state string, registeredDelta int) {
	if c == nil {
		return
	}
	c.sessionTransitions.WithLabelValues(state).Inc()
	if registeredDelta != 0 {
		c.sessionsRegistered.Add(float64(registeredDelta))
	}
}

// CommandDone counts a finished command. latency is ignored when zero.
func (c *Collectors) CommandDone(outcome string, latency time.Duration) {
	if c == nil {
		return
	}
	c.commands.WithLabelValues(outcome).Inc()
	if latency > 0 {
		c.commandLatency.Observe(latency.Seconds())
	}
}
