package sqlconn

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// PoolOptions tune each engine's connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// EngineRecorder is told each time a new engine is built.
type EngineRecorder interface {
	EngineBuilt()
}

// EngineCache holds at most one live engine (a *sql.DB pool). The engine is
// reused while the connection string and token are unchanged; a different
// pair disposes it and builds a new one. All methods are safe for
// concurrent use.
type EngineCache struct {
	registry *Registry
	pool     PoolOptions
	recorder EngineRecorder
	logger   *slog.Logger

	mu     sync.Mutex
	db     *sql.DB
	key    string
	builds int
}

// NewEngineCache returns an empty cache that resolves drivers in registry.
// recorder may be nil.
func NewEngineCache(registry *Registry, pool PoolOptions, recorder EngineRecorder, logger *slog.Logger) *EngineCache {
	return &EngineCache{registry: registry, pool: pool, recorder: recorder, logger: logger}
}

// Conn checks out a connection from the engine for (cs, token), building the
// engine first if needed. The engine lock is held until the connection is
// established, so a concurrent Reset cannot dispose the engine underneath it.
func (c *EngineCache) Conn(ctx context.Context, cs ConnString, token string) (*sql.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := engineKey(cs, token)
	if c.db == nil || c.key != key {
		c.disposeLocked()
		c.buildLocked(cs, token, key)
	}

	return c.db.Conn(ctx)
}

func (c *EngineCache) buildLocked(cs ConnString, token, key string) {
	db := sql.OpenDB(&managedConnector{
		registry: c.registry,
		cs:       cs,
		attrs:    Attrs{AttrAccessToken: EncodeAccessToken(token)},
	})

	if c.pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.pool.MaxOpenConns)
	}

	if c.pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.pool.ConnMaxLifetime)
	}

	c.db = db
	c.key = key
	c.builds++

	c.logger.Debug("engine built", slog.String("driver", cs.Driver), slog.Int("builds", c.builds))

	if c.recorder != nil {
		c.recorder.EngineBuilt()
	}
}

// Reset disposes the current engine, if any. The next Conn builds a new one.
func (c *EngineCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disposeLocked()
}

func (c *EngineCache) disposeLocked() {
	if c.db == nil {
		return
	}

	if err := c.db.Close(); err != nil {
		c.logger.Warn("closing engine", slog.String("error", err.Error()))
	}

	c.db = nil
	c.key = ""

	c.logger.Debug("engine disposed")
}

// Builds returns how many engines have been built.
func (c *EngineCache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.builds
}

// Close disposes the engine. Equivalent to Reset.
func (c *EngineCache) Close() error {
	c.Reset()
	return nil
}

// engineKey identifies an engine without keeping the token in memory longer
// than the engine itself.
func engineKey(cs ConnString, token string) string {
	sum := sha256.Sum256([]byte(token))
	return cs.String() + "|" + hex.EncodeToString(sum[:])
}
