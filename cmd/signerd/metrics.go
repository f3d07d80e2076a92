package main

import "github.com/prometheus/client_golang/prometheus"

// signOpCounter counts every sign operation signerd dispatches, labeled by
// operation name and outcome, so an operator's dashboard can alert on a
// rising policy-rejection rate without scraping logs.
var signOpCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "remotesigner",
		Name:      "sign_ops_total",
		Help:      "Total number of signer operations dispatched, by operation and outcome.",
	},
	[]string{"op", "outcome"},
)

var nodeGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "remotesigner",
		Name:      "nodes_loaded",
		Help:      "Number of node identities currently loaded in memory.",
	},
)

func init() {
	prometheus.MustRegister(signOpCounter, nodeGauge)
}

// observeOp records the outcome of one sign operation. err may be nil.
func observeOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	signOpCounter.WithLabelValues(op, outcome).Inc()
}
