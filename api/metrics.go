package api

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	gateResponses *prometheus.CounterVec
	verifications *prometheus.CounterVec
	listings      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		gateResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aona",
			Subsystem: "gate",
			Name:      "responses_total",
			Help:      "Gated reading requests by outcome.",
		}, []string{"status"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aona",
			Subsystem: "payment",
			Name:      "verifications_total",
			Help:      "Payment proofs checked through the verify helper, by reason.",
		}, []string{"reason"}),
		listings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aona",
			Subsystem: "registry",
			Name:      "listings_total",
			Help:      "Provider listings served, by source.",
		}, []string{"source"}),
	}
	reg.MustRegister(m.gateResponses, m.verifications, m.listings)
	return m
}
