package relocation

import "github.com/prometheus/client_golang/prometheus"

var (
	relocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmer_relocations_total",
		Help: "Relocation attempts by outcome.",
	}, []string{"outcome"})
	relocationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "farmer_relocation_duration_seconds",
		Help:    "Time from request to robot acknowledgement and commit.",
		Buckets: []float64{1, 5, 10, 20, 30, 60, 120},
	})
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "farmer_relocation_queue_depth",
		Help: "Relocations waiting for the robot.",
	})
)

func init() {
	prometheus.MustRegister(relocations, relocationDuration, queueDepth)
}
