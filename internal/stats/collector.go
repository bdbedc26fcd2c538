package stats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
)

// Collector exports a Stats as Prometheus metrics.
type Collector struct {
	stats *Stats

	scans          *prometheus.Desc
	advertisements *prometheus.Desc
	messages       *prometheus.Desc
	anomalies      *prometheus.Desc
	broadcasters   *prometheus.Desc
}

// NewCollector creates a collector reading s.
func NewCollector(s *Stats) *Collector {
	return &Collector{
		stats: s,
		scans: prometheus.NewDesc(
			"rid_scans_total", "Scans by outcome.", []string{"outcome"}, nil),
		advertisements: prometheus.NewDesc(
			"rid_advertisements_total", "Advertisements handed to the decoder.", nil, nil),
		messages: prometheus.NewDesc(
			"rid_messages_total", "Decoded Remote-ID messages by kind.", []string{"kind"}, nil),
		anomalies: prometheus.NewDesc(
			"rid_decode_anomalies_total", "Advertisements that decoded with an error.", nil, nil),
		broadcasters: prometheus.NewDesc(
			"rid_active_broadcasters", "Broadcasters in the live catalog.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.scans
	ch <- c.advertisements
	ch <- c.messages
	ch <- c.anomalies
	ch <- c.broadcasters
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats

	ch <- prometheus.MustNewConstMetric(c.scans, prometheus.CounterValue,
		float64(atomic.LoadUint64(&s.ScansStarted)), "started")
	ch <- prometheus.MustNewConstMetric(c.scans, prometheus.CounterValue,
		float64(atomic.LoadUint64(&s.ScansCompleted)), "completed")
	ch <- prometheus.MustNewConstMetric(c.scans, prometheus.CounterValue,
		float64(atomic.LoadUint64(&s.ScansFailed)), "failed")

	ch <- prometheus.MustNewConstMetric(c.advertisements, prometheus.CounterValue,
		float64(atomic.LoadUint64(&s.Advertisements)))
	ch <- prometheus.MustNewConstMetric(c.anomalies, prometheus.CounterValue,
		float64(atomic.LoadUint64(&s.DecodeAnomalies)))

	for i := range s.KindCounts {
		label := remoteid.MessageKind(i).String()
		if i == UnknownKindSlot {
			label = "UNKNOWN"
		}
		ch <- prometheus.MustNewConstMetric(c.messages, prometheus.CounterValue,
			float64(atomic.LoadUint64(&s.KindCounts[i])), label)
	}

	ch <- prometheus.MustNewConstMetric(c.broadcasters, prometheus.GaugeValue,
		float64(atomic.LoadUint64(&s.ActiveBroadcasters)))
}
