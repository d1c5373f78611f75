// Package metrics exposes chunk cache statistics over Prometheus.
package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stratumdb/stratumdb/internal/config"
	"github.com/stratumdb/stratumdb/pkg/types"
	"github.com/stratumdb/stratumdb/pkg/utils"
)

var logger = utils.GetLogger("stratumdb")

// StatsSource is anything that can report cache statistics; the chunk cache
// facade implements it.
type StatsSource interface {
	Stats() types.CacheStats
}

// Collector bridges a StatsSource into a Prometheus registry and serves the
// scrape endpoint.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry
	server   *http.Server

	source StatsSource

	hitsDesc          *prometheus.Desc
	missesDesc        *prometheus.Desc
	admissionsDesc    *prometheus.Desc
	invalidationsDesc *prometheus.Desc
	capacityFullDesc  *prometheus.Desc
	bytesUsedDesc     *prometheus.Desc
	capacityDesc      *prometheus.Desc
	hitRateDesc       *prometheus.Desc
}

// NewCollector creates a collector for the given source.
func NewCollector(cfg *config.MetricsConfig, source StatsSource) (*Collector, error) {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true, Port: 8080, Path: "/metrics"}
	}

	c := &Collector{
		config: cfg,
		source: source,

		hitsDesc: prometheus.NewDesc("stratumdb_chunkcache_hits_total",
			"Number of chunk cache lookups served from cached data", nil, nil),
		missesDesc: prometheus.NewDesc("stratumdb_chunkcache_misses_total",
			"Number of chunk cache lookups that missed", nil, nil),
		admissionsDesc: prometheus.NewDesc("stratumdb_chunkcache_admissions_total",
			"Number of chunks admitted into the cache", nil, nil),
		invalidationsDesc: prometheus.NewDesc("stratumdb_chunkcache_invalidations_total",
			"Number of chunks dropped because their backing range was overwritten", nil, nil),
		capacityFullDesc: prometheus.NewDesc("stratumdb_chunkcache_capacity_full_total",
			"Number of admissions declined because the cache was full", nil, nil),
		bytesUsedDesc: prometheus.NewDesc("stratumdb_chunkcache_bytes_used",
			"Bytes currently held by cached chunks", nil, nil),
		capacityDesc: prometheus.NewDesc("stratumdb_chunkcache_capacity_bytes",
			"Configured chunk cache capacity", nil, nil),
		hitRateDesc: prometheus.NewDesc("stratumdb_chunkcache_hit_rate",
			"Lifetime hit rate of the chunk cache", nil, nil),
	}

	if !cfg.Enabled {
		return c, nil
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(c); err != nil {
		return nil, fmt.Errorf("failed to register chunk cache collector: %w", err)
	}
	c.registry = registry
	return c, nil
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hitsDesc
	ch <- c.missesDesc
	ch <- c.admissionsDesc
	ch <- c.invalidationsDesc
	ch <- c.capacityFullDesc
	ch <- c.bytesUsedDesc
	ch <- c.capacityDesc
	ch <- c.hitRateDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.hitsDesc, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.missesDesc, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.admissionsDesc, prometheus.CounterValue, float64(stats.Admissions))
	ch <- prometheus.MustNewConstMetric(c.invalidationsDesc, prometheus.CounterValue, float64(stats.Invalidations))
	ch <- prometheus.MustNewConstMetric(c.capacityFullDesc, prometheus.CounterValue, float64(stats.CapacityFull))
	ch <- prometheus.MustNewConstMetric(c.bytesUsedDesc, prometheus.GaugeValue, float64(stats.Size))
	ch <- prometheus.MustNewConstMetric(c.capacityDesc, prometheus.GaugeValue, float64(stats.Capacity))
	ch <- prometheus.MustNewConstMetric(c.hitRateDesc, prometheus.GaugeValue, stats.HitRate)
}

// Start serves the metrics endpoint until Stop is called. Binding happens
// here, so a taken port fails Start instead of a background goroutine.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", c.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on metrics port %d: %w", c.config.Port, err)
	}

	c.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics endpoint failed: %s", err)
		}
	}()
	return nil
}

// Stop shuts the metrics endpoint down.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// Registry exposes the underlying registry for tests and embedding.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
