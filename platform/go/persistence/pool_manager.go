package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// Dialer opens a pool for a fully derived configuration.
type Dialer func(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error)

// PoolManagerConfig configures the per-tenant pool cache.
type PoolManagerConfig struct {
	// BaseConnString is the shared host/port/credentials descriptor; its database name is replaced
	// by the tenant's database identifier.
	BaseConnString string
	MaxConns       int32
	MaxConnIdle    time.Duration
	// ConnectTimeout bounds dialing and pinging a tenant database so an unreachable tenant
	// cannot stall a login scan.
	ConnectTimeout time.Duration
	// Dialer overrides how pools are opened. Defaults to pgxpool + ping.
	Dialer Dialer
}

// PoolManager lazily creates and caches one pgx pool per tenant database. Pools are never evicted
// during normal operation; Close is for process shutdown only.
type PoolManager struct {
	base           *pgxpool.Config
	dial           Dialer
	connectTimeout time.Duration

	// dials collapses concurrent first access to one dial per database.
	dials singleflight.Group

	mu     sync.Mutex
	pools  map[string]*pgxpool.Pool
	closed bool
}

// NewPoolManager parses the base descriptor once. It does not connect.
func NewPoolManager(cfg PoolManagerConfig) (*PoolManager, error) {
	base, err := ParsePoolConfig(PoolConfig{
		ConnString:      cfg.BaseConnString,
		MaxConns:        cfg.MaxConns,
		MaxConnIdleTime: cfg.MaxConnIdle,
		ConnectTimeout:  cfg.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("tenant pool manager: %w", err)
	}

	dial := cfg.Dialer
	if dial == nil {
		timeout := cfg.ConnectTimeout
		dial = func(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
			return openPool(ctx, poolConfig, timeout)
		}
	}

	return &PoolManager{
		base:           base,
		dial:           dial,
		connectTimeout: cfg.ConnectTimeout,
		pools:          make(map[string]*pgxpool.Pool),
	}, nil
}

// Pool returns the cached pool for databaseIdentifier or opens a new one. Failed dials are not
// cached, so the next call retries. The mutex only guards the map; concurrent first access to one
// database shares a single dial, and a slow dial never blocks callers of other databases. Waiting
// callers give up when their own ctx is done.
func (m *PoolManager) Pool(ctx context.Context, databaseIdentifier string) (*pgxpool.Pool, error) {
	name := strings.TrimSpace(databaseIdentifier)
	if name == "" {
		return nil, errors.New("database identifier is required")
	}

	if pool, ok := m.cached(name); ok {
		return pool, nil
	}

	// The dial is shared by every waiter, so it must not die with the first caller's ctx.
	dialCtx := context.WithoutCancel(ctx)
	results := m.dials.DoChan(name, func() (any, error) {
		if pool, ok := m.cached(name); ok {
			return pool, nil
		}
		return m.open(dialCtx, name)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("open pool for database %q: %w", name, ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*pgxpool.Pool), nil
	}
}

func (m *PoolManager) cached(name string) (*pgxpool.Pool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pool, ok := m.pools[name]
	return pool, ok
}

func (m *PoolManager) open(ctx context.Context, name string) (*pgxpool.Pool, error) {
	if m.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.connectTimeout)
		defer cancel()
	}

	pool, err := m.dial(ctx, m.ConfigFor(name))
	if err != nil {
		return nil, fmt.Errorf("open pool for database %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		ClosePool(pool)
		return nil, fmt.Errorf("open pool for database %q: %w", name, ErrPoolManagerClosed)
	}
	m.pools[name] = pool
	return pool, nil
}

// ConfigFor derives the pool configuration of a tenant database from the base descriptor.
func (m *PoolManager) ConfigFor(databaseIdentifier string) *pgxpool.Config {
	cfg := m.base.Copy()
	cfg.ConnConfig.Database = databaseIdentifier
	return cfg
}

// Databases lists the identifiers with an open pool, sorted.
func (m *PoolManager) Databases() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close shuts down every cached pool. Dials still in flight are discarded when they finish.
func (m *PoolManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for name, pool := range m.pools {
		ClosePool(pool)
		delete(m.pools, name)
	}
}
