package scenario

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "afp_runs_total",
	Help: "Scenario runs by result",
}, []string{"result"})
