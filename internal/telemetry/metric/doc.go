// Package metric exposes meshkv metrics in Prometheus format.
//
//   - prometheus.go: the Registry, its instruments and the /metrics handler
//   - collector.go: a collector sampling key and subscription counts on scrape
//
// Registry implements both engine.Observer and pubsub.Observer, so it can be
// handed directly to engine.WithObserver and pubsub.WithObserver.
package metric
