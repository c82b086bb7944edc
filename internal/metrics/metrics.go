// Package metrics exports every layer's Stats counters as Prometheus
// metrics: a custom prometheus.Collector holding a mutex-guarded
// registry of tracked instances, describing a fixed set of metric
// descriptors once, and walking the live registry on every Collect
// call rather than pushing updates eagerly.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	isn "github.com/isotel-go/isn-core"
)

// Collector exports the Stats of every registered layer under a
// shared Prometheus namespace, labeled by layer name.
type Collector struct {
	namespace string

	mu     sync.Mutex
	layers map[string]*isn.Stats

	txPackets *prometheus.Desc
	txCounter *prometheus.Desc
	txRetries *prometheus.Desc
	txDropped *prometheus.Desc
	rxPackets *prometheus.Desc
	rxCounter *prometheus.Desc
	rxErrors  *prometheus.Desc
	rxDropped *prometheus.Desc
	rxRetries *prometheus.Desc
	dupErrors *prometheus.Desc
}

// NewCollector builds a Collector whose metric names are prefixed
// with namespace (e.g. "isn"), ready to be handed to
// prometheus.MustRegister.
func NewCollector(namespace string) *Collector {
	labels := []string{"layer"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(namespace+"_"+name, help, labels, nil)
	}
	return &Collector{
		namespace: namespace,
		layers:    make(map[string]*isn.Stats),
		txPackets: desc("tx_packets_total", "packets successfully transmitted"),
		txCounter: desc("tx_counter", "rolling per-layer transmit counter"),
		txRetries: desc("tx_retries_total", "transmit attempts that hit capacity refusal"),
		txDropped: desc("tx_dropped_total", "transmit attempts abandoned"),
		rxPackets: desc("rx_packets_total", "packets successfully received"),
		rxCounter: desc("rx_counter", "rolling per-layer receive counter"),
		rxErrors:  desc("rx_errors_total", "receives that failed CRC or format validation"),
		rxDropped: desc("rx_dropped_total", "receives discarded after a timeout or resync"),
		rxRetries: desc("rx_retries_total", "receives that made partial progress"),
		dupErrors: desc("dup_errors_total", "Dup fan-outs whose targets disagreed on accepted size"),
	}
}

// Register adds stats to the registry under layer, replacing any
// previous registration with that name.
func (c *Collector) Register(layer string, stats *isn.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers[layer] = stats
}

// Unregister removes layer from the registry.
func (c *Collector) Unregister(layer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.layers, layer)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.txPackets
	ch <- c.txCounter
	ch <- c.txRetries
	ch <- c.txDropped
	ch <- c.rxPackets
	ch <- c.rxCounter
	ch <- c.rxErrors
	ch <- c.rxDropped
	ch <- c.rxRetries
	ch <- c.dupErrors
}

// Collect implements prometheus.Collector, reading a fresh Snapshot
// of every registered layer's Stats.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	snapshot := make(map[string]isn.StatsSnapshot, len(c.layers))
	for name, s := range c.layers {
		snapshot[name] = s.Snapshot()
	}
	c.mu.Unlock()

	for name, s := range snapshot {
		ch <- prometheus.MustNewConstMetric(c.txPackets, prometheus.CounterValue, float64(s.TxPackets), name)
		ch <- prometheus.MustNewConstMetric(c.txCounter, prometheus.GaugeValue, float64(s.TxCounter), name)
		ch <- prometheus.MustNewConstMetric(c.txRetries, prometheus.CounterValue, float64(s.TxRetries), name)
		ch <- prometheus.MustNewConstMetric(c.txDropped, prometheus.CounterValue, float64(s.TxDropped), name)
		ch <- prometheus.MustNewConstMetric(c.rxPackets, prometheus.CounterValue, float64(s.RxPackets), name)
		ch <- prometheus.MustNewConstMetric(c.rxCounter, prometheus.GaugeValue, float64(s.RxCounter), name)
		ch <- prometheus.MustNewConstMetric(c.rxErrors, prometheus.CounterValue, float64(s.RxErrors), name)
		ch <- prometheus.MustNewConstMetric(c.rxDropped, prometheus.CounterValue, float64(s.RxDropped), name)
		ch <- prometheus.MustNewConstMetric(c.rxRetries, prometheus.CounterValue, float64(s.RxRetries), name)
		ch <- prometheus.MustNewConstMetric(c.dupErrors, prometheus.CounterValue, float64(s.DupErrors), name)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
