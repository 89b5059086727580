package metric

import "github.com/prometheus/client_golang/prometheus"

// KeyCounter reports the number of live keys.
type KeyCounter interface {
	KeyCount() int
}

// SubscriptionCounter reports the number of registered subscriptions.
type SubscriptionCounter interface {
	Count() int
}

// Collector samples point-in-time sizes on every scrape.
type Collector struct {
	keys KeyCounter
	subs SubscriptionCounter

	keysDesc *prometheus.Desc
	subsDesc *prometheus.Desc
}

// NewCollector creates a collector. Either source may be nil, in which case
// its metric is omitted.
func NewCollector(keys KeyCounter, subs SubscriptionCounter) *Collector {
	return &Collector{
		keys: keys,
		subs: subs,
		keysDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "keys"),
			"Keys currently stored, including not yet purged expired keys.",
			nil, nil,
		),
		subsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pubsub", "subscriptions"),
			"Registered pub/sub subscriptions.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	if c.keys != nil {
		ch <- c.keysDesc
	}
	if c.subs != nil {
		ch <- c.subsDesc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.keys != nil {
		ch <- prometheus.MustNewConstMetric(c.keysDesc, prometheus.GaugeValue, float64(c.keys.KeyCount()))
	}
	if c.subs != nil {
		ch <- prometheus.MustNewConstMetric(c.subsDesc, prometheus.GaugeValue, float64(c.subs.Count()))
	}
}
