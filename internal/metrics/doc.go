// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Scheduler ticks by mode and outcome, tick duration
//   - Provider attempts by status class and retry count
//   - Read path tier hits (cache, durable, empty)
//   - History trimming and snapshot size
//   - HTTP request rates and websocket subscribers
package metrics
