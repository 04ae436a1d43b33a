package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "liveshare",
		Name:      "connections_accepted_total",
		Help:      "Total number of connections accepted by the host",
	})

	ParticipantsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "liveshare",
		Name:      "participants_active",
		Help:      "Current number of admitted remote participants",
	})

	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liveshare",
		Name:      "messages_relayed_total",
		Help:      "Messages re-published by the host on behalf of clients",
	}, []string{"type"})

	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "liveshare",
		Name:      "decode_failures_total",
		Help:      "Frames that could not be decoded into a message",
	})

	StreamLagged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liveshare",
		Name:      "stream_lagged_total",
		Help:      "Values dropped for subscribers that fell behind a broadcast stream",
	}, []string{"stream"})
)

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
