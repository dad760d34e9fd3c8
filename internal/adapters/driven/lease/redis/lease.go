// Package redis provides a lease manager backed by Redis, for deployments
// where more than one tenk process writes to the same knowledge base.
//
// Acquire is SET NX PX. Renew and Release run Lua scripts that touch the key
// only while it still holds the caller's token.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// Defaults.
const (
	DefaultPrefix = "tenk:lease:"
	DefaultTTL    = 2 * time.Minute

	releaseTimeout = 5 * time.Second
)

// Ensure Manager implements the interface.
var _ driven.LeaseManager = (*Manager)(nil)

// Manager grants leases stored as Redis keys.
type Manager struct {
	client goredis.UniversalClient
	prefix string
}

// NewManager wraps client. An empty prefix uses DefaultPrefix.
func NewManager(client goredis.UniversalClient, prefix string) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", domain.ErrInvalidConfig)
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return &Manager{client: client, prefix: prefix}, nil
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, prefix string) (*Manager, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return NewManager(client, prefix)
}

// Acquire takes the lease on key or fails with domain.ErrLeaseConflict.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (*driven.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: lease key is empty", domain.ErrInvalidInput)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	token := uuid.NewString()
	now := time.Now()
	ok, err := m.client.SetNX(ctx, m.prefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLeaseConflict
	}
	return &driven.Lease{Key: key, Token: token, ExpiresAt: now.Add(ttl)}, nil
}

// Renew resets the expiry of a lease the token still owns.
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

	now := time.Now()
	n, err := renewScript.Run(ctx, m.client, []string{m.prefix + l.Key}, l.Token, ttl.Milliseconds()).Int()
	if err != nil {
		return nil, fmt.Errorf("renew lease %s: %w", l.Key, err)
	}
	if n == 0 {
		return nil, domain.ErrLeaseConflict
	}
	return &driven.Lease{Key: l.Key, Token: l.Token, ExpiresAt: now.Add(ttl)}, nil
}

// Release frees the lease if the token still owns it. It runs on a fresh
// context so a cancelled caller still frees the key.
func (m *Manager) Release(_ context.Context, l *driven.Lease) error {
	if l == nil || l.Key == "" || l.Token == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if _, err := releaseScript.Run(ctx, m.client, []string{m.prefix + l.Key}, l.Token).Int(); err != nil {
		return fmt.Errorf("release lease %s: %w", l.Key, err)
	}
	return nil
}

// Close closes the underlying client.
func (m *Manager) Close() error {
	return m.client.Close()
}

var renewScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)
