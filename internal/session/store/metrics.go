// SPDX-License-Identifier: MIT

package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "webpanel_sessions",
			Help: "Current session records per registry",
		},
		[]string{"registry"},
	)
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webpanel_session_transitions_total",
			Help: "Session state transitions",
		},
		[]string{"state_from", "state_to"},
	)
	transitionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webpanel_session_transitions_rejected_total",
			Help: "State transitions rejected by the lifecycle table",
		},
		[]string{"state_from", "event"},
	)
)

func recordRegistrySizes(pending, active int) {
	sessionsGauge.WithLabelValues("pending").Set(float64(pending))
	sessionsGauge.WithLabelValues("active").Set(float64(active))
}

func recordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

func recordTransitionRejected(from, event string) {
	transitionsRejected.WithLabelValues(from, event).Inc()
}
