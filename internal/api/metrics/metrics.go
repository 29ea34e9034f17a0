// Package metrics defines and registers the custom Prometheus metrics of the
// agent onboarding portal. Metrics register with the default registry on
// package initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// ── Account metrics ───────────────────────────────────────────────────────────

// SignUpsTotal counts sign-up attempts.
// Label:
//   - result: "success" or "failure"
var SignUpsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_ups_total",
		Help:      "Total number of agent sign-up attempts, by result.",
	},
	[]string{"result"},
)

// SignInsTotal counts password sign-in attempts.
var SignInsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_ins_total",
		Help:      "Total number of sign-in attempts, by result.",
	},
	[]string{"result"},
)

var ProfileUpdatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_updates_total",
		Help:      "Total number of own-profile updates, by result.",
	},
	[]string{"result"},
)

// ProfileUnresolvedTotal counts views served to a signed-in visitor whose
// profile could not be loaded.
var ProfileUnresolvedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_unresolved_total",
		Help:      "Total number of views served while the visitor's profile was unresolved.",
	},
)

// ── Onboarding metrics ────────────────────────────────────────────────────────

// ReceiptUploadsTotal counts payment receipt uploads.
var ReceiptUploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipt_uploads_total",
		Help:      "Total number of payment receipt uploads, by result.",
	},
	[]string{"result"},
)

// AgentReviewsTotal counts admin decisions.
// Labels:
//   - status: "approved" or "rejected"
//   - result: "success" or "failure"
var AgentReviewsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agent_reviews_total",
		Help:      "Total number of agent approval decisions, by status and result.",
	},
	[]string{"status", "result"},
)

// ViewRedirectsTotal counts guarded page visits that were redirected.
// Labels:
//   - from: the requested view
//   - to: the view chosen by the access router
var ViewRedirectsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "view_redirects_total",
		Help:      "Total number of guarded view visits redirected elsewhere.",
	},
	[]string{"from", "to"},
)

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// RegisterActiveVisitors exposes the live visitor count as a gauge.
func RegisterActiveVisitors(count func() int) prometheus.GaugeFunc {
	return promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_visitors",
			Help:      "Number of visitors with live session state.",
		},
		func() float64 { return float64(count()) },
	)
}
