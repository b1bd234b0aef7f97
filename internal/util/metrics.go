package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order creations",
	}, []string{"reason"})

	CouponRedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_redemptions_total",
		Help: "Coupon redemption attempts by outcome",
	}, []string{"outcome"})

	PaymentAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment initializations by path",
	}, []string{"path"})

	PaymentSettledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_settled_total",
		Help: "Settlement transitions applied, by resulting status",
	}, []string{"status"})

	PaymentCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "3D-Secure callbacks received, by outcome",
	}, []string{"outcome"})

	GroupPropagatedOrders = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_group_propagated_orders",
		Help:    "Sibling orders updated per settlement",
		Buckets: []float64{0, 1, 2, 3, 5, 8},
	})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of bank gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events relayed to the broker, by outcome",
	}, []string{"outcome"})

	NotificationsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notifications sent, by channel and outcome",
	}, []string{"channel", "outcome"})

	PendingPaymentsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pending_payments_expired_total",
		Help: "Orders failed by the abandoned-payment reconciler",
	})

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
