package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run holds the gauges describing a single sync run. Nothing is served;
// the registry is written to a node_exporter textfile when asked.
type Run struct {
	registry *prometheus.Registry

	fetched    prometheus.Gauge
	written    prometheus.Gauge
	skipped    prometheus.Gauge
	statusCode prometheus.Gauge
	success    prometheus.Gauge
	timestamp  prometheus.Gauge
	duration   prometheus.Gauge
}

func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		fetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ticket_sync_fetched_records",
			Help: "Number of ticket records returned by the source API in the last run.",
		}),
		written: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ticket_sync_written_records",
			Help: "Number of ticket rows replaced in the destination table in the last run.",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ticket_sync_skipped_records",
			Help: "Number of ticket records skipped for lack of a primary key in the last run.",
		}),
		statusCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ticket_sync_fetch_status_code",
			Help: "HTTP status code of the last fetch, 0 if no response was received.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ticket_sync_last_run_success",
			Help: "1 if the last run completed without error, 0 otherwise.",
		}),
		timestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ticket_sync_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ticket_sync_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
	}
	r.registry.MustRegister(r.fetched, r.written, r.skipped, r.statusCode, r.success, r.timestamp, r.duration)
	return r
}

func (r *Run) ObserveFetch(records, statusCode int) {
	r.fetched.Set(float64(records))
	r.statusCode.Set(float64(statusCode))
}

func (r *Run) ObservePersist(written, skipped int) {
	r.written.Set(float64(written))
	r.skipped.Set(float64(skipped))
}

// Finish records the outcome of a run that ran from start to end.
func (r *Run) Finish(start, end time.Time, err error) {
	if err == nil {
		r.success.Set(1)
	} else {
		r.success.Set(0)
	}
	r.timestamp.Set(float64(end.Unix()))
	r.duration.Set(end.Sub(start).Seconds())
}

// Gatherer exposes the run registry for inspection, e.g. by tests or a
// caller that wants to export the gauges some other way.
func (r *Run) Gatherer() prometheus.Gatherer { return r.registry }

// WriteTextfile writes the registry atomically in text exposition format.
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
