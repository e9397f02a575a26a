package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
)

var (
	RoomsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pegboard_rooms_active",
			Help: "Rooms currently held in memory",
		},
	)
	Actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pegboard_actions_total",
			Help: "Actions seen by room controllers, by type and outcome",
		},
		[]string{"action", "outcome"},
	)
	BroadcastDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pegboard_broadcast_dropped_total",
			Help: "State snapshots not delivered because a connection buffer was full",
		},
	)
	PresenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pegboard_presence_failures_total",
			Help: "Presence signals that could not be queued or delivered",
		},
	)
	LobbySignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pegboard_lobby_signals_total",
			Help: "Presence signals applied by the lobby counter",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(RoomsActive)
	prometheus.MustRegister(Actions)
	prometheus.MustRegister(BroadcastDropped)
	prometheus.MustRegister(PresenceFailures)
	prometheus.MustRegister(LobbySignals)
}

// ObserveAction records the outcome of one inbound action.
func ObserveAction(action, outcome string) {
	Actions.WithLabelValues(action, outcome).Inc()
}
