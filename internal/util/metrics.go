package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kitstore_orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersPaidTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitstore_orders_paid_total",
		Help: "Orders moved to PAID, by source (webhook, simulation)",
	}, []string{"source"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitstore_orders_failed_total",
		Help: "Orders moved to FAILED, by source (webhook, simulation)",
	}, []string{"source"})

	OrderTransitionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kitstore_order_transitions_rejected_total",
		Help: "Status transitions refused because the order was no longer PENDING",
	})

	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitstore_checkout_sessions_total",
		Help: "Checkout sessions created, by mode (provider, fallback)",
	}, []string{"mode"})

	PaymentAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kitstore_payment_api_latency_seconds",
		Help:    "Latency of outbound payment provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitstore_webhook_events_total",
		Help: "Webhook deliveries, by event kind and result",
	}, []string{"kind", "result"})

	WebhookSignatureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kitstore_webhook_signature_failures_total",
		Help: "Webhook deliveries with a missing or mismatched signature",
	})

	CatalogCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitstore_catalog_cache_total",
		Help: "Item list cache lookups, by result (hit, miss)",
	}, []string{"result"})

	HistoryEventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitstore_history_events_total",
		Help: "Lifecycle events consumed by the history worker, by result",
	}, []string{"result"})

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
