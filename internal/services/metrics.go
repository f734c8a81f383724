package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// decisionsTotal counts transition attempts by action and classified
	// outcome, so repeated presses and conflicts stay visible.
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewarden_decisions_total",
			Help: "Total number of decision transition attempts by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	// submissionsTotal counts successful draft submissions.
	submissionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatewarden_submissions_total",
			Help: "Total number of applications submitted for review.",
		},
	)
)

func init() {
	prometheus.MustRegister(decisionsTotal, submissionsTotal)
}
