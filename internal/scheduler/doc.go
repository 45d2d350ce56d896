// Package scheduler drives the periodic market sync.
//
// Each scheduled tick checks, in order, the remote enable flag, the
// distributed lease and the in-process rate guard. Any failing check skips
// the tick without error. A tick that passes fetches the top assets, caches
// the snapshot, persists it as the live record, appends it to history, trims
// history and records the outcome.
//
// Manual ticks (RunNow) bypass the three checks but still record status and
// audit events. Ticks never overlap within a process.
package scheduler
