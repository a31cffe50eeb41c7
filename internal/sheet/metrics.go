package sheet

import "github.com/prometheus/client_golang/prometheus"

var (
	literalParseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsheet_literal_parse_failures_total",
			Help: "Partition key and parameter values rejected by the literal parser.",
		},
		[]string{"field"},
	)
	runsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsheet_sheet_runs_rejected_total",
			Help: "Sheet runs refused before reaching the source.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(literalParseFailures, runsRejected)
}
