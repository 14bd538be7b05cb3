package exec

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	launches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "algoscan_pass_launches_total",
		Help: "Total number of block-parallel passes dispatched",
	})

	blocksDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "algoscan_blocks_dispatched_total",
		Help: "Total number of blocks executed across all passes",
	})

	panicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "algoscan_callback_panics_total",
		Help: "Total number of panics recovered from scan callbacks",
	})
)
