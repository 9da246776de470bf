package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/logging"
	"github.com/ekaya-inc/ekaya-hangar/pkg/retry"
)

const (
	DefaultConnectionTTLMinutes = 5
	DefaultCleanupInterval      = 1 * time.Minute
	DefaultMaxPools             = 32
	DefaultPoolMaxConns         = 10
	DefaultPoolMinConns         = 1
	DefaultHealthCheckTimeout   = 5 * time.Second
)

// ConnectionManagerConfig holds configuration for the connection manager
type ConnectionManagerConfig struct {
	TTLMinutes   int
	MaxPools     int
	PoolMaxConns int32
	PoolMinConns int32
}

// WithDefaults fills unset fields with package defaults.
func (c ConnectionManagerConfig) WithDefaults() ConnectionManagerConfig {
	if c.TTLMinutes <= 0 {
		c.TTLMinutes = DefaultConnectionTTLMinutes
	}
	if c.MaxPools <= 0 {
		c.MaxPools = DefaultMaxPools
	}
	if c.PoolMaxConns <= 0 {
		c.PoolMaxConns = DefaultPoolMaxConns
	}
	if c.PoolMinConns <= 0 {
		c.PoolMinConns = DefaultPoolMinConns
	}
	return c
}

// PoolFactory opens a new pool for a database. It is only called when no
// healthy pool exists for the key.
type PoolFactory func(ctx context.Context) (PoolConnector, error)

// ConnectionManager shares one connection pool per configured database across
// requests, closing pools that stay idle longer than the TTL.
type ConnectionManager struct {
	mu            sync.RWMutex
	connections   map[string]*ManagedConnection // key: "{dbType}:{databaseID}"
	cfg           ConnectionManagerConfig
	ttl           time.Duration
	stopped       bool
	stopChan      chan struct{}
	logger        *zap.Logger
	retryConfig   *retry.Config
	healthTimeout time.Duration
}

// ManagedConnection is a pool with its last-use time.
type ManagedConnection struct {
	pool     PoolConnector
	lastUsed time.Time
	mu       sync.Mutex // Serializes health checks on one pool
}

// NewConnectionManager creates a connection manager with the given configuration.
// Starts a background cleanup goroutine that runs until Close() is called.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger) *ConnectionManager {
	cfg = cfg.WithDefaults()

	manager := &ConnectionManager{
		connections:   make(map[string]*ManagedConnection),
		cfg:           cfg,
		ttl:           time.Duration(cfg.TTLMinutes) * time.Minute,
		stopChan:      make(chan struct{}),
		logger:        logger.Named("connections"),
		retryConfig:   retry.DefaultConfig(),
		healthTimeout: DefaultHealthCheckTimeout,
	}

	go manager.cleanupExpiredConnections()
	return manager
}

// Config returns the effective configuration.
func (m *ConnectionManager) Config() ConnectionManagerConfig {
	return m.cfg
}

func connectionKey(dbType, databaseID string) string {
	return dbType + ":" + databaseID
}

// GetOrCreateConnection returns the pool for a database, creating it with
// create when none exists or the existing one fails its health check.
func (m *ConnectionManager) GetOrCreateConnection(
	ctx context.Context,
	dbType string,
	databaseID string,
	create PoolFactory,
) (PoolConnector, error) {
	key := connectionKey(dbType, databaseID)

	// Fast path under the read lock
	m.mu.RLock()
	managed, exists := m.connections[key]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()

		healthCtx, cancel := context.WithTimeout(ctx, m.healthTimeout)
		err := retry.Do(healthCtx, m.retryConfig, func() error {
			return managed.pool.Ping(healthCtx)
		})
		cancel()

		if err != nil {
			m.logger.Warn("connection unhealthy, recreating",
				zap.String("key", key),
				zap.String("error", logging.SanitizeError(err)),
			)
			managed.mu.Unlock()
			m.removeConnection(key, managed)
			return m.createConnection(ctx, key, dbType, databaseID, create)
		}

		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.pool, nil
	}

	return m.createConnection(ctx, key, dbType, databaseID, create)
}

// createConnection creates a new pool, retrying transient failures.
// Caller must NOT hold any locks (this method acquires write lock).
func (m *ConnectionManager) createConnection(
	ctx context.Context,
	key string,
	dbType string,
	databaseID string,
	create PoolFactory,
) (PoolConnector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, fmt.Errorf("connection manager is closed")
	}

	// Another goroutine may have created it while we waited for the lock
	if managed, exists := m.connections[key]; exists && managed != nil {
		managed.mu.Lock()
		defer managed.mu.Unlock()
		managed.lastUsed = time.Now()
		return managed.pool, nil
	}

	if len(m.connections) >= m.cfg.MaxPools {
		m.logger.Warn("reached max pools limit",
			zap.String("key", key),
			zap.Int("max", m.cfg.MaxPools),
		)
		return nil, fmt.Errorf("connection manager has reached maximum pools limit (%d)", m.cfg.MaxPools)
	}

	pool, err := retry.DoWithResultIfRetryable(ctx, m.retryConfig, func() (PoolConnector, error) {
		return create(ctx)
	})
	if err != nil {
		m.logger.Error("failed to create pool after retries",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to create pool for %s after retries: %w", key, err)
	}

	m.connections[key] = &ManagedConnection{
		pool:     pool,
		lastUsed: time.Now(),
	}

	m.logger.Info("created new connection pool",
		zap.String("key", key),
		zap.String("type", dbType),
		zap.String("database", databaseID),
		zap.Int("totalPools", len(m.connections)),
	)

	return pool, nil
}

// removeConnection closes and forgets the pool for key if it is still the
// given managed connection.
// Caller must NOT hold m.mu lock (this method acquires write lock).
func (m *ConnectionManager) removeConnection(key string, expected *ManagedConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	managed, exists := m.connections[key]
	if !exists || managed != expected {
		return
	}
	m.closePool(key, managed)
	delete(m.connections, key)
	m.logger.Debug("removed connection", zap.String("key", key))
}

func (m *ConnectionManager) closePool(key string, managed *ManagedConnection) {
	if managed == nil || managed.pool == nil {
		return
	}
	if err := managed.pool.Close(); err != nil {
		m.logger.Warn("failed to close pool",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)),
		)
	}
}

// cleanupExpiredConnections runs until stopChan is closed.
func (m *ConnectionManager) cleanupExpiredConnections() {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup()
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup removes connections that haven't been used within TTL.
// Lock order: manager lock, then connection lock.
func (m *ConnectionManager) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	now := time.Now()
	var expiredKeys []string

	for key, managed := range m.connections {
		if managed == nil {
			continue
		}
		managed.mu.Lock()
		idleTime := now.Sub(managed.lastUsed)
		managed.mu.Unlock()

		if idleTime > m.ttl {
			expiredKeys = append(expiredKeys, key)
			m.logger.Debug("marking connection for cleanup",
				zap.String("key", key),
				zap.Duration("idleTime", idleTime),
				zap.Duration("ttl", m.ttl),
			)
		}
	}

	for _, key := range expiredKeys {
		m.closePool(key, m.connections[key])
		delete(m.connections, key)
	}

	if len(expiredKeys) > 0 {
		m.logger.Info("cleaned up expired connections",
			zap.Int("count", len(expiredKeys)),
			zap.Int("remaining", len(m.connections)),
		)
	}
}

// Close closes all connections in the manager and stops the cleanup goroutine.
// This method is idempotent and safe to call multiple times.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for key, managed := range m.connections {
		m.closePool(key, managed)
	}

	m.connections = make(map[string]*ManagedConnection)
	m.logger.Info("connection manager closed")
	return nil
}

// GetStats returns statistics about the connection manager.
// Safe to call concurrently.
func (m *ConnectionManager) GetStats() ConnectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := ConnectionStats{
		TotalConnections:  len(m.connections),
		MaxPools:          m.cfg.MaxPools,
		TTLMinutes:        int(m.ttl.Minutes()),
		ConnectionsByType: make(map[string]int),
		Databases:         make([]string, 0, len(m.connections)),
	}

	for key, managed := range m.connections {
		if managed == nil {
			continue
		}
		stats.ConnectionsByType[managed.pool.GetType()]++
		stats.Databases = append(stats.Databases, key)

		managed.mu.Lock()
		idleSeconds := int(now.Sub(managed.lastUsed).Seconds())
		managed.mu.Unlock()
		if idleSeconds > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idleSeconds
		}
	}
	sort.Strings(stats.Databases)

	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	TotalConnections  int            `json:"total_connections"`
	MaxPools          int            `json:"max_pools"`
	TTLMinutes        int            `json:"ttl_minutes"`
	ConnectionsByType map[string]int `json:"connections_by_type"`
	Databases         []string       `json:"databases"`
	OldestIdleSeconds int            `json:"oldest_idle_seconds"`
}
