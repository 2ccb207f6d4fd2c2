package actuator

import "github.com/prometheus/client_golang/prometheus"

var (
	channelDuty = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "farmer_actuator_channel_duty",
		Help: "Last duty written to each PWM channel.",
	}, []string{"channel"})
	schedulerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "farmer_actuator_scheduler_errors_total",
		Help: "Scheduler ticks that failed to drive the lights.",
	})
	dosingRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmer_actuator_dosing_runs_total",
		Help: "Scheduled nutrient dosing runs by outcome.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(channelDuty, schedulerErrors, dosingRuns)
}
