// Package lock coordinates provider calls across and within processes.
//
// Three guards run before a scheduled tick:
//   - Flags: a remote enable switch that fails open
//   - Locker: a named distributed lease released only by expiry
//   - RateGuard: an in-process minimum interval between provider calls
package lock
