package registry

import "github.com/prometheus/client_golang/prometheus"

var (
	bookedPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "farmer_registry_booked_positions",
		Help: "Number of positions currently booked.",
	})
	persistFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "farmer_registry_persist_failures_total",
		Help: "Registry writes that could not be persisted.",
	})
)

func init() {
	prometheus.MustRegister(bookedPositions, persistFailures)
}

func updateBookedGauge(positions []Position) {
	n := 0
	for _, p := range positions {
		if p.Booked {
			n++
		}
	}
	bookedPositions.Set(float64(n))
}
