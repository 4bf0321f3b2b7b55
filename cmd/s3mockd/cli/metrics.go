package cli

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var MetricsOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "s3mockd_connections_open",
	Help: "Current number of open connections.",
})

func SetupMetrics(globalMux *http.ServeMux) {
	prometheus.MustRegister(MetricsOpenConnections)
	RegisterMetrics()

	stdout.Printf("Using %s as the metrics path.\n", Flags.MetricsPath)
	globalMux.Handle(Flags.MetricsPath, promhttp.Handler())
}
