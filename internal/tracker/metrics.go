package tracker

import "github.com/prometheus/client_golang/prometheus"

var (
	tickCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worktrack",
		Subsystem: "tracker",
		Name:      "ticks_total",
		Help:      "Sampler ticks by accounted state.",
	}, []string{"state"})

	inputCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "worktrack",
		Subsystem: "tracker",
		Name:      "input_events_total",
		Help:      "User input events delivered to the idle detector.",
	})

	summaryCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "worktrack",
		Subsystem: "tracker",
		Name:      "summaries_total",
		Help:      "Bucket summaries emitted, including the partial bucket at stop.",
	})

	scoreGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "worktrack",
		Subsystem: "tracker",
		Name:      "productivity_score",
		Help:      "Live session productivity score (0-100).",
	})

	runningGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "worktrack",
		Subsystem: "tracker",
		Name:      "sessions_running",
		Help:      "Number of tracking sessions currently running.",
	})
)

func init() {
	prometheus.MustRegister(tickCounter, inputCounter, summaryCounter, scoreGauge, runningGauge)
}
