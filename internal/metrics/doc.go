// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connected sessions and hub evictions
//   - Wager placements, rejections and settlements
//   - Tick duration and current market prices
//   - Audit writer throughput and failures
//
// All recording methods are safe to call on a nil *Metrics.
package metrics
