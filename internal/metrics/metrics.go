package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChainHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rustycoin",
		Name:      "chain_height",
		Help:      "Index of the chain tip.",
	})

	MempoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rustycoin",
		Name:      "mempool_size",
		Help:      "Number of unconfirmed transactions in the mempool.",
	})

	BlocksMined = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rustycoin",
		Name:      "blocks_mined_total",
		Help:      "Total blocks assembled and mined locally.",
	})

	BlocksAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rustycoin",
		Name:      "blocks_appended_total",
		Help:      "Total blocks appended to the chain.",
	})

	BlocksRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rustycoin",
		Name:      "blocks_rejected_total",
		Help:      "Total blocks that failed verification.",
	})

	ForkSwitches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rustycoin",
		Name:      "fork_switches_total",
		Help:      "Total times conflict resolution replaced the chain.",
	})
)

// Register installs all collectors on the given registry, or the
// default registry when nil.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		ChainHeight,
		MempoolSize,
		BlocksMined,
		BlocksAppended,
		BlocksRejected,
		ForkSwitches,
	)
}

// Handler serves the default registry over HTTP for hosts that expose
// a metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
