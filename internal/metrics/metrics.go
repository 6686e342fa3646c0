// Package metrics provides Prometheus instrumentation for the tutoring session:
// control message throughput, join latency and sub-connection state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ControlMessagesTotal counts control-channel traffic by kind and result.
	ControlMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tutor_control_messages_total",
		Help: "Control channel messages processed",
	}, []string{"kind", "result"}) // result = "sent", "send_failed", "received", "dropped"

	// JoinDuration records the time from join request to transport ack.
	JoinDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutor_join_duration_seconds",
		Help:    "Time from join request to transport acknowledgment",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
	}, []string{"purpose"})

	// JoinFailuresTotal counts negative acks and timeouts.
	JoinFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tutor_join_failures_total",
		Help: "Sub-connection joins that failed",
	}, []string{"purpose"})

	// SubConnectionState is 1 for the current state of each purpose, 0 otherwise.
	SubConnectionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tutor_subconnection_state",
		Help: "Current state of each sub-connection",
	}, []string{"purpose", "state"})

	// RemoteParticipants tracks peers currently seen on the channel.
	RemoteParticipants = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tutor_remote_participants",
		Help: "Peer participants currently on the channel",
	})

	// ViewClients tracks connected view websocket clients.
	ViewClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tutor_view_clients",
		Help: "Connected view websocket clients",
	})
)

func init() {
	prometheus.MustRegister(
		ControlMessagesTotal,
		JoinDuration,
		JoinFailuresTotal,
		SubConnectionState,
		RemoteParticipants,
		ViewClients,
	)
}

// SetState marks state as current for purpose.
func SetState(purpose string, current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		SubConnectionState.WithLabelValues(purpose, s).Set(v)
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
