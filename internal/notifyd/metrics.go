// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notifyd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "notifyd"

// Metrics collected by the daemon. Collectors are registered on the given
// registerer, a nil registerer leaves them unregistered.
type Metrics struct {
	Posts            prometheus.Counter
	Deliveries       *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	Registrations    *prometheus.GaugeVec
	Clients          prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Posts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "posts_total",
			Help:      "Notifications posted.",
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_total",
			Help:      "Deliveries performed, by mechanism.",
		}, []string{"mechanism"}),
		DeliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_failures_total",
			Help:      "Deliveries that could not be performed, by mechanism.",
		}, []string{"mechanism"}),
		Registrations: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "registrations",
			Help:      "Live registrations, by mechanism.",
		}, []string{"mechanism"}),
		Clients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "clients",
			Help:      "Connected clients.",
		}),
	}
}
