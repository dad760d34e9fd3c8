// Package memory provides an in-process lease manager.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// DefaultTTL is used when Acquire is called with ttl <= 0.
const DefaultTTL = 2 * time.Minute

// Ensure Manager implements the interface.
var _ driven.LeaseManager = (*Manager)(nil)

type record struct {
	token     string
	expiresAt time.Time
}

// Manager grants expiring leases held in a map.
type Manager struct {
	mu     sync.Mutex
	leases map[string]record
	now    func() time.Time
}

// NewManager creates an empty lease manager.
func NewManager() *Manager {
	return &Manager{leases: make(map[string]record), now: time.Now}
}

// Acquire takes the lease on key or fails with domain.ErrLeaseConflict.
// An expired lease is taken over.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (*driven.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("%w: lease key is empty", domain.ErrInvalidInput)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if rec, ok := m.leases[key]; ok && now.Before(rec.expiresAt) {
		return nil, domain.ErrLeaseConflict
	}

	l := &driven.Lease{Key: key, Token: uuid.NewString(), ExpiresAt: now.Add(ttl)}
	m.leases[key] = record{token: l.Token, expiresAt: l.ExpiresAt}
	return l, nil
}

// Renew extends a lease the token still owns. An expired lease cannot be
// renewed even when nobody has taken it over.
func (m *Manager) Renew(ctx context.Context, l *driven.Lease, ttl time.Duration) (*driven.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l == nil || l.Key == "" || l.Token == "" {
		return nil, fmt.Errorf("%w: valid lease is required", domain.ErrInvalidInput)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec, ok := m.leases[l.Key]
	if !ok || rec.token != l.Token || !now.Before(rec.expiresAt) {
		return nil, domain.ErrLeaseConflict
	}

	renewed := &driven.Lease{Key: l.Key, Token: l.Token, ExpiresAt: now.Add(ttl)}
	m.leases[l.Key] = record{token: l.Token, expiresAt: renewed.ExpiresAt}
	return renewed, nil
}

// Release frees the lease if the token still owns it. Releasing a lease
// that expired and was taken over is a no-op.
func (m *Manager) Release(_ context.Context, l *driven.Lease) error {
	if l == nil || l.Key == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.leases[l.Key]; ok && rec.token == l.Token {
		delete(m.leases, l.Key)
	}
	return nil
}
