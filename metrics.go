package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mgazza/energy-costs/billing"
)

var (
	calculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "energy_costs",
			Subsystem: "billing",
			Name:      "calculations_total",
			Help:      "Total number of cost calculations",
		},
		[]string{"granularity", "result"},
	)

	calculationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "energy_costs",
			Subsystem: "billing",
			Name:      "calculation_duration_seconds",
			Help:      "Duration of cost calculations including source loading",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30, 120},
		},
		[]string{"granularity"},
	)

	periodsProduced = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "energy_costs",
			Subsystem: "billing",
			Name:      "periods",
			Help:      "Periods in the last calculation by status",
		},
		[]string{"status"},
	)

	sourceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "energy_costs",
			Subsystem: "source",
			Name:      "errors_total",
			Help:      "Total number of failed reading or contract loads",
		},
		[]string{"kind"},
	)

	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "energy_costs",
			Subsystem: "http_cache",
			Name:      "requests_total",
			Help:      "Outbound API requests by cache result",
		},
		[]string{"result"},
	)
)

var allStatuses = []billing.Status{billing.StatusEmpty, billing.StatusActual, billing.StatusInterpolated, billing.StatusExtrapolated}

// recordCalculation updates the calculation metrics for one run.
func recordCalculation(g billing.Granularity, started time.Time, points []billing.CostDataPoint, err error) {
	calculationDuration.WithLabelValues(string(g)).Observe(time.Since(started).Seconds())
	if err != nil {
		calculationsTotal.WithLabelValues(string(g), "error").Inc()
		return
	}
	calculationsTotal.WithLabelValues(string(g), "ok").Inc()
	for _, s := range allStatuses {
		periodsProduced.WithLabelValues(string(s)).Set(float64(billing.CountStatus(points, s)))
	}
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
