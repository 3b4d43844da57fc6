package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_started_total",
		Help: "Total number of checkouts started",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of checkouts that failed before payment initiation",
	}, []string{"reason"})

	PaymentsInitiatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_initiated_total",
		Help: "Total number of STK push payments initiated",
	})

	PaymentOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_outcomes_total",
		Help: "Terminal payment poller outcomes",
	}, []string{"state"})

	PollRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_poll_requests_total",
		Help: "Total number of payment status poll requests issued",
	})

	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_poll_errors_total",
		Help: "Total number of transport errors during status polling",
	})

	PaymentSettleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_settle_duration_seconds",
		Help:    "Time from payment initiation to a terminal poller state",
		Buckets: []float64{3, 6, 12, 30, 60, 90, 120},
	})

	RefundsInitiatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refunds_initiated_total",
		Help: "Total number of B2C refunds initiated",
	})

	RefundsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_rejected_total",
		Help: "Total number of refund requests rejected client-side",
	}, []string{"reason"})

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Latency of calls to the commerce backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
