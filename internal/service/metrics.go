package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain counters complementing the HTTP metrics in internal/middleware.
var (
	discountsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradeconnect",
			Name:      "discounts_applied_total",
			Help:      "Discount rules applied after conflict resolution, by source",
		},
		[]string{"source"},
	)

	promoClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradeconnect",
			Name:      "promo_claims_total",
			Help:      "Promo code usage claims, by outcome",
		},
		[]string{"result"},
	)

	registrationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tradeconnect",
			Name:      "registrations_expired_total",
			Help:      "Reservation holds moved to EXPIRADO",
		},
	)
)
