package pywr

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveMetricsAddr string

// serveMetricsCmd exposes the process's default Prometheus registry (the
// same registry internal/simulate.Engine registers its solve-duration and
// scenario counters against) over HTTP. It is ambient observability
// tooling, not something a model run needs to complete.
var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Serve /metrics for the current process's Prometheus registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doServeMetrics(serveMetricsAddr)
	},
}

func init() {
	serveMetricsCmd.Flags().StringVar(&serveMetricsAddr, "addr", ":9090", "address to serve /metrics on")
}

func doServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logrus.Infof("serving /metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		return fail(exitUsage, "serving metrics: %w", err)
	}
	return nil
}
