// Package market serves the current market snapshot to readers.
//
// Reads are tiered. A fresh cache entry is served as-is. Otherwise the durable
// live record is served with degraded=true. When neither exists an empty,
// degraded snapshot is synthesized. Every response carries the tier it came
// from so callers can surface staleness.
package market
