// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirana_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kirana_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirana_orders_placed_total",
			Help: "Orders accepted, by payment method.",
		},
		[]string{"payment_method"},
	)

	OrderRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirana_order_rejections_total",
			Help: "Orders rejected at checkout, by reason code.",
		},
		[]string{"reason"},
	)

	StockReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kirana_stock_released_units_total",
			Help: "Units returned to stock by cancellations and checkout rollbacks.",
		},
	)

	LedgerPosts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirana_ledger_posts_total",
			Help: "Ledger entries posted, by kind and source.",
		},
		[]string{"kind", "source"},
	)

	MigratedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirana_legacy_migrated_total",
			Help: "Legacy records copied into the ledger, by kind.",
		},
		[]string{"kind"},
	)

	BillingCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirana_billing_cache_lookups_total",
			Help: "Store-wide billing cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)
)
