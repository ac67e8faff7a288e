package transmit

import "github.com/prometheus/client_golang/prometheus"

var (
	sendCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worktrack",
		Subsystem: "transmit",
		Name:      "payloads_total",
		Help:      "Payload sends by kind and outcome.",
	}, []string{"kind", "outcome"})

	sendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "worktrack",
		Subsystem: "transmit",
		Name:      "send_duration_seconds",
		Help:      "Time spent delivering a payload, including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"kind"})

	outboxCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worktrack",
		Subsystem: "outbox",
		Name:      "envelopes_total",
		Help:      "Envelopes parked in or replayed from the local outbox.",
	}, []string{"action"})
)

func init() {
	prometheus.MustRegister(sendCounter, sendDuration, outboxCounter)
}
