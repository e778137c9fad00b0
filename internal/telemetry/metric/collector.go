package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Probe reads a value at scrape time. ok=false skips the sample.
type Probe func() (value float64, ok bool)

// Collector reports gauges whose values are read at scrape time, such as
// the remaining TeleTAN budget or the record count of an in-memory store.
type Collector struct {
	descs  []*prometheus.Desc
	probes []Probe
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Gauge adds a gauge named tanserver_<name> backed by probe.
func (c *Collector) Gauge(name, help string, probe Probe) *Collector {
	c.descs = append(c.descs, prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", name), help, nil, nil,
	))
	c.probes = append(c.probes, probe)
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for i, probe := range c.probes {
		v, ok := probe()
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.descs[i], prometheus.GaugeValue, v)
	}
}

// Register adds c to the registry.
func (r *Registry) Register(c *Collector) error {
	return r.reg.Register(c)
}
