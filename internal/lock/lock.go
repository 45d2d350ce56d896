package lock

import (
	"context"
	"time"
)

// Locker grants a named lease. A false result with a nil error means the lease
// is held elsewhere. There is no release: the lease lapses at expiry.
type Locker interface {
	TryAcquire(ctx context.Context, name string, lease time.Duration) (bool, error)
}
