package baseline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var baselineLoads = promauto.NewCounter(prometheus.CounterOpts{
	Name: "afp_baseline_loads_total",
	Help: "Baseline datasets assembled",
})
