package driven

import (
	"context"
	"time"
)

// LeaseManager grants exclusive, expiring write leases per filing key.
// Acquire returns domain.ErrLeaseConflict while another holder owns the key.
// Renew extends a lease the caller still owns and returns
// domain.ErrLeaseConflict once it expired or was taken over.
type LeaseManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error)
	Renew(ctx context.Context, lease *Lease, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
}

// Lease is proof of exclusive write access to one key.
type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}
