// Package metrics exposes the Prometheus registry the client packages
// register into, and persists it for the node exporter textfile collector.
//
// Metrics are declared next to the code that updates them:
//
// Requests (pkg/client):
//   - altered_requests_total{method, status} (Counter)
//   - altered_request_duration_seconds{method} (Histogram)
//   - altered_errors_total{class} (Counter)
//   - altered_retries_total{error_class} (Counter)
//   - altered_retry_backoff_seconds{error_class} (Histogram)
//   - altered_retry_exhausted_total{error_class} (Counter)
//   - altered_user_agent_rotations_total (Counter)
//
// Rate limiting (pkg/ratelimit):
//   - altered_rate_limit_hits_total (Counter)
//   - altered_rate_limit_waits_total (Counter)
//   - altered_rate_limit_wait_seconds (Histogram)
//
// Pagination and enrichment (pkg/pagination, pkg/stream):
//   - altered_pages_fetched_total (Counter)
//   - altered_page_items_fetched_total (Counter)
//   - altered_enrichment_succeeded_total (Counter)
//   - altered_enrichment_dropped_total (Counter)
//
// Reports (pkg/report):
//   - altered_report_items_written_total{format} (Counter)
//   - altered_reports_written_total{format} (Counter)
//
// Example queries:
//
//	# Share of detail fetches that failed
//	altered_enrichment_dropped_total /
//	(altered_enrichment_succeeded_total + altered_enrichment_dropped_total)
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(altered_request_duration_seconds_bucket[5m]))
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the registerer all package metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what Registry holds.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes the current metrics in text exposition format to path.
// The write is atomic, so a collector never reads a partial file.
func WriteTextfile(path string) error {
	return writeTextfile(path, Gatherer)
}

func writeTextfile(path string, g prometheus.Gatherer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
