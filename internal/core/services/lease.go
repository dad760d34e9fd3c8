package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/logger"
)

// cleanupTimeout bounds release and rollback work that runs after the
// caller's context is gone.
const cleanupTimeout = 10 * time.Second

// filingLeaseKey names the lease guarding writes to one filing.
func filingLeaseKey(key domain.FilingKey) string {
	return "filing:" + key.String()
}

// defaultLeaseTTL is used when lease.ttl is unset.
const defaultLeaseTTL = 2 * time.Minute

// acquireLease takes the lease on key, polling every poll interval while
// another writer holds it. It gives up only when ctx ends.
//
// While held, the lease is renewed every ttl/3. The returned context is
// cancelled with domain.ErrLeaseConflict as its cause if a renewal finds
// the lease lost, so the holder stops writing and rolls back. The release
// func never fails and must always be called.
func acquireLease(
	ctx context.Context, leases driven.LeaseManager, key string, ttl, poll time.Duration,
) (context.Context, func(), error) {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}

	waited := false
	for {
		lease, err := leases.Acquire(ctx, key, ttl)
		if err == nil {
			if waited {
				logger.Debug("lease %s acquired after waiting", key)
			}
			lctx, release := holdLease(ctx, leases, lease, ttl)
			return lctx, release, nil
		}
		if !errors.Is(err, domain.ErrLeaseConflict) {
			return nil, nil, fmt.Errorf("acquire lease %s: %w", key, err)
		}
		if !waited {
			logger.Debug("lease %s held by another writer, waiting", key)
			waited = true
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, fmt.Errorf("acquire lease %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

// holdLease starts the renew loop for lease. Renewal keeps running after
// ctx ends so rollback still happens under the lease; it stops only when
// the release func is called or the lease is lost.
func holdLease(
	ctx context.Context, leases driven.LeaseManager, lease *driven.Lease, ttl time.Duration,
) (context.Context, func()) {
	lctx, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		renewLease(leases, lease, ttl, stop, cancel)
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			cancel(nil)
			releaseLease(leases, lease)
		})
	}
	return lctx, release
}

func renewLease(
	leases driven.LeaseManager, lease *driven.Lease, ttl time.Duration,
	stop <-chan struct{}, lost context.CancelCauseFunc,
) {
	interval := max(ttl/3, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	current := lease
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		rctx, cancel := context.WithTimeout(context.Background(), interval)
		renewed, err := leases.Renew(rctx, current, ttl)
		cancel()
		switch {
		case err == nil:
			current = renewed
		case errors.Is(err, domain.ErrLeaseConflict) || !time.Now().Before(current.ExpiresAt):
			logger.Warn("lease %s lost: %v", lease.Key, err)
			lost(fmt.Errorf("%w: lease %s lost", domain.ErrLeaseConflict, lease.Key))
			return
		default:
			// Transient failure; the lease is still valid until ExpiresAt.
			logger.Debug("renew lease %s: %v", lease.Key, err)
		}
	}
}

// releaseLease frees a lease on a detached context so cancelled callers
// still hand the filing back.
func releaseLease(leases driven.LeaseManager, lease *driven.Lease) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := leases.Release(ctx, lease); err != nil {
		logger.Warn("release lease %s: %v", lease.Key, err)
	}
}

// withTimeout derives a bounded context. d <= 0 leaves ctx unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
