// Package metrics records run statistics and writes them in the Prometheus
// text exposition format.
package metrics

import (
	"time"

	"github.com/m-mizutani/curator/pkg/analysis"
	"github.com/m-mizutani/curator/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the metrics of a single curation run
type Recorder struct {
	registry *prometheus.Registry

	assets           *prometheus.CounterVec
	excluded         prometheus.Counter
	events           prometheus.Counter
	fallbacks        *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	copied           prometheus.Counter
}

func New() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		assets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_assets_total",
			Help: "Number of discovered assets by timestamp source.",
		}, []string{"source"}),
		excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curator_assets_excluded_total",
			Help: "Number of assets dropped by the exclusion policy.",
		}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curator_events_total",
			Help: "Number of event groups formed.",
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_analysis_fallbacks_total",
			Help: "Number of event groups that received default analysis results.",
		}, []string{"reason"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "curator_analysis_duration_seconds",
			Help:    "Round trip time of analysis requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		copied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curator_files_copied_total",
			Help: "Number of asset copies written to the output directory.",
		}),
	}

	for _, c := range []prometheus.Collector{r.assets, r.excluded, r.events, r.fallbacks, r.analysisDuration, r.copied} {
		if err := r.registry.Register(c); err != nil {
			return nil, goerr.Wrap(err, "failed to register metric")
		}
	}
	return r, nil
}

// Registry exposes the underlying registry, mainly for tests
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveAsset(asset *model.AssetRecord) {
	r.assets.WithLabelValues(string(asset.TimestampSource)).Inc()
}

func (r *Recorder) AddExcluded(n int) {
	r.excluded.Add(float64(n))
}

func (r *Recorder) AddEvents(n int) {
	r.events.Add(float64(n))
}

// Fallback is usable as analysis.WithFallbackHook
func (r *Recorder) Fallback(reason analysis.FallbackReason) {
	r.fallbacks.WithLabelValues(string(reason)).Inc()
}

// ObserveAnalysis is usable as analysis.WithDurationHook
func (r *Recorder) ObserveAnalysis(d time.Duration) {
	r.analysisDuration.Observe(d.Seconds())
}

// Copied is usable as materialize.WithCopyHook
func (r *Recorder) Copied() {
	r.copied.Inc()
}

// WriteTextfile writes all metrics to path, replacing it atomically
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return goerr.Wrap(err, "failed to write metrics textfile", goerr.V("path", path))
	}
	return nil
}
