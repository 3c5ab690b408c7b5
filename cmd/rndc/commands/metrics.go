package commands

import (
	"fmt"
	"io"
	"net/http/httptest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// dumpMetrics renders everything registered in reg in Prometheus text
// exposition format to w. rndc is a one-shot command, not a long-running
// daemon with a scrape target, so it has no business binding an HTTP
// listener for --metrics-dump; it reuses the teacher's promhttp.HandlerFor
// against an in-memory ResponseRecorder instead of running the teacher's
// newMetricsServer HTTP listener, to get the same text format a scraper
// would see without leaving a port open after the process exits.
func dumpMetrics(reg *prometheus.Registry, w io.Writer) error {
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if _, err := fmt.Fprint(w, rec.Body.String()); err != nil {
		return fmt.Errorf("write metrics dump: %w", err)
	}

	return nil
}
