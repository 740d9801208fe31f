package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/boxstore-go/internal/pool"
)

// PoolCollector exports connection pool statistics on every scrape.
type PoolCollector struct {
	stats func() pool.Stats

	active    *prometheus.Desc
	idle      *prometheus.Desc
	waiting   *prometheus.Desc
	maxTotal  *prometheus.Desc
	created   *prometheus.Desc
	destroyed *prometheus.Desc
}

// NewPoolCollector creates a collector reading stats from fn. name becomes
// the "pool" label.
func NewPoolCollector(name string, fn func() pool.Stats) *PoolCollector {
	labels := prometheus.Labels{"pool": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", metric), help, nil, labels)
	}
	return &PoolCollector{
		stats:     fn,
		active:    desc("active", "Borrowed connections"),
		idle:      desc("idle", "Idle connections"),
		waiting:   desc("waiting", "Callers blocked waiting for a connection"),
		maxTotal:  desc("max_total", "Configured connection limit"),
		created:   desc("created_total", "Connections created"),
		destroyed: desc("destroyed_total", "Connections closed"),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.active
	ch <- c.idle
	ch <- c.waiting
	ch <- c.maxTotal
	ch <- c.created
	ch <- c.destroyed
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(s.Active))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(s.Waiting))
	ch <- prometheus.MustNewConstMetric(c.maxTotal, prometheus.GaugeValue, float64(s.MaxTotal))
	ch <- prometheus.MustNewConstMetric(c.created, prometheus.CounterValue, float64(s.Created))
	ch <- prometheus.MustNewConstMetric(c.destroyed, prometheus.CounterValue, float64(s.Destroyed))
}
