package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	frames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmer_telemetry_frames_total",
		Help: "Sensor cycles by result.",
	}, []string{"result"})
	readings = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "farmer_telemetry_reading",
		Help: "Latest reading per sensor channel.",
	}, []string{"channel"})
)

func init() {
	prometheus.MustRegister(frames, readings)
}
