// Package metrics exposes prometheus counters for the growth engine. The
// counters are registered on the default registry; long-running deployments
// can expose them with promhttp, batch runs simply pay the negligible cost.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsIssued counts platform mutations by action type
	ActionsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iggrowth_actions_issued_total",
		Help: "Number of follow/unfollow/like actions issued against the platform",
	}, []string{"action"})

	// RequestRetries counts executor retries by failure classification
	RequestRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iggrowth_request_retries_total",
		Help: "Number of request retries by failure classification",
	}, []string{"class"})

	// RequestsFatal counts requests abandoned as fatal by classification
	RequestsFatal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iggrowth_requests_fatal_total",
		Help: "Number of requests abandoned as fatal by failure classification",
	}, []string{"class"})

	// CandidatesFiltered counts good-user pipeline drops by stage
	CandidatesFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iggrowth_candidates_filtered_total",
		Help: "Number of candidates dropped by the good-user filter, by stage",
	}, []string{"stage"})
)
