// Package model defines shared data types used across the market sync service.
//
// Conventions:
//   - Prices and quantities: shopspring decimal, never float64
//   - Nullable provider fields: pointers (nil = provider did not report it)
//   - Timestamps: time.Time normalized to UTC
//   - Snapshots are never mutated after construction; a newer one supersedes them
package model
