// SPDX-License-Identifier: MIT

package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	idlerEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webpanel_idler_events_total",
			Help: "Idler events consumed, by type",
		},
		[]string{"type"},
	)
	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webpanel_logins_total",
			Help: "Login attempts accepted or rejected",
		},
		[]string{"result"},
	)
	promotionsAbandoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webpanel_promotions_abandoned_total",
			Help: "loggedOn events whose record was already gone; the idler handle was discarded",
		},
	)
)
