package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	leasememory "github.com/custodia-labs/tenk/internal/adapters/driven/lease/memory"
	"github.com/custodia-labs/tenk/internal/core/domain"
)

func TestFilingLeaseKey(t *testing.T) {
	key := domain.FilingKey{Ticker: "AAPL", Period: domain.FilingPeriod{Year: 2023, Quarter: domain.Q4}}
	assert.Equal(t, "filing:AAPL/2023/Q4", filingLeaseKey(key))
}

func TestAcquireLease_WaitsForRelease(t *testing.T) {
	leases := leasememory.NewManager()
	ctx := context.Background()

	_, release, err := acquireLease(ctx, leases, "k", time.Minute, time.Millisecond)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		_, second, err := acquireLease(ctx, leases, "k", time.Minute, time.Millisecond)
		if err == nil {
			second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second writer got the lease while it was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second writer never got the lease")
	}
}

func TestAcquireLease_GivesUpWithContext(t *testing.T) {
	leases := leasememory.NewManager()

	_, release, err := acquireLease(context.Background(), leases, "k", time.Minute, time.Millisecond)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err = acquireLease(ctx, leases, "k", time.Minute, time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquireLease_RenewsWhileHeld(t *testing.T) {
	leases := leasememory.NewManager()
	ttl := 30 * time.Millisecond

	lctx, release, err := acquireLease(context.Background(), leases, "k", ttl, time.Millisecond)
	require.NoError(t, err)

	// Several TTLs later the lease is still held.
	time.Sleep(4 * ttl)
	_, err = leases.Acquire(context.Background(), "k", ttl)
	require.ErrorIs(t, err, domain.ErrLeaseConflict)
	require.NoError(t, lctx.Err())

	release()
	release()
	assert.ErrorIs(t, lctx.Err(), context.Canceled)

	// Released leases stop renewing and the key is free.
	l, err := leases.Acquire(context.Background(), "k", ttl)
	require.NoError(t, err)
	require.NoError(t, leases.Release(context.Background(), l))
}

func TestAcquireLease_CancelsWhenLost(t *testing.T) {
	leases := losingLeases{leasememory.NewManager()}

	lctx, release, err := acquireLease(context.Background(), leases, "k", 15*time.Millisecond, time.Millisecond)
	require.NoError(t, err)
	defer release()

	select {
	case <-lctx.Done():
	case <-time.After(time.Second):
		t.Fatal("lease context not cancelled after losing the lease")
	}
	assert.ErrorIs(t, context.Cause(lctx), domain.ErrLeaseConflict)
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := withTimeout(context.Background(), 0)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)

	ctx2, cancel2 := withTimeout(context.Background(), time.Minute)
	defer cancel2()
	_, ok = ctx2.Deadline()
	assert.True(t, ok)
}
