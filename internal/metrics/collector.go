package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sawpanic/cryptoquote/internal/directory"
	"github.com/sawpanic/cryptoquote/internal/quote"
)

// Collector holds the Prometheus metrics for one run.
type Collector struct {
	registry *prometheus.Registry

	QuotesTotal      *prometheus.CounterVec
	DirectoryLoads   *prometheus.CounterVec
	DirectoryEntries prometheus.Gauge
	FetchDuration    prometheus.Histogram
}

// NewCollector creates a collector backed by its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		QuotesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoquote_quotes_total",
				Help: "Quotes produced, by outcome",
			},
			[]string{"status"},
		),

		DirectoryLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoquote_directory_loads_total",
				Help: "Coin directory loads, by origin",
			},
			[]string{"source"},
		),

		DirectoryEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cryptoquote_directory_entries",
				Help: "Entries in the loaded coin directory",
			},
		),

		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cryptoquote_price_fetch_duration_seconds",
				Help:    "Duration of price endpoint lookups in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),
	}

	c.registry.MustRegister(c.QuotesTotal, c.DirectoryLoads, c.DirectoryEntries, c.FetchDuration)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// DirectoryLoaded records where the directory came from and its size.
func (c *Collector) DirectoryLoaded(res directory.Result) {
	c.DirectoryLoads.WithLabelValues(string(res.Origin)).Inc()
	c.DirectoryEntries.Set(float64(len(res.Directory)))
}

// QuoteCompleted implements quote.Observer.
func (c *Collector) QuoteCompleted(q quote.Quote, elapsed time.Duration) {
	c.QuotesTotal.WithLabelValues(q.Status.String()).Inc()
	if q.CoinID != "" {
		c.FetchDuration.Observe(elapsed.Seconds())
	}
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
