package query

import "github.com/prometheus/client_golang/prometheus"

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsheet_query_runs_total",
			Help: "Total number of query executions by outcome.",
		},
		[]string{"outcome"},
	)
	pagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docsheet_query_pages_total",
			Help: "Total number of result pages read from sources.",
		},
	)
	itemsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docsheet_query_items_total",
			Help: "Total number of documents returned by sources.",
		},
	)
	requestChargeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docsheet_query_request_charge_total",
			Help: "Accumulated request charge reported for all pages.",
		},
	)
	warningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docsheet_query_warnings_total",
			Help: "Total number of non-fatal warnings recorded during executions.",
		},
	)
	durationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docsheet_query_duration_seconds",
			Help:    "Elapsed time of query executions.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		runsTotal,
		pagesTotal,
		itemsTotal,
		requestChargeTotal,
		warningsTotal,
		durationSeconds,
	)
}

func observeResult(result Result) {
	outcome := "completed"
	switch Classify(result.Err) {
	case ErrorKindCancelled:
		outcome = "cancelled"
	case ErrorKindPageRead, ErrorKindOther:
		outcome = "failed"
	}
	runsTotal.WithLabelValues(outcome).Inc()
	if result.Pages > 0 {
		pagesTotal.Add(float64(result.Pages))
	}
	if len(result.Items) > 0 {
		itemsTotal.Add(float64(len(result.Items)))
	}
	if result.RequestCharge > 0 {
		requestChargeTotal.Add(result.RequestCharge)
	}
	if len(result.Warnings) > 0 {
		warningsTotal.Add(float64(len(result.Warnings)))
	}
	durationSeconds.Observe(result.Elapsed.Seconds())
}
