package config

import "sync"

// Holder provides thread-safe access to the resolved *Config and the
// process-wide token cache location. The cache location may be replaced
// between queries; every replacement is validated first.
type Holder struct {
	mu            sync.RWMutex
	cfg           *Config
	path          string // immutable after construction
	cacheLocation string
}

// NewHolder creates a Holder with the resolved config and config file path.
// The cache location starts out as cfg.Cache.Location.
func NewHolder(cfg *Config, path string) *Holder {
	return &Holder{
		cfg:           cfg,
		path:          path,
		cacheLocation: cfg.Cache.Location,
	}
}

// Config returns the current config snapshot. Thread-safe (read lock).
func (h *Holder) Config() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cfg
}

// Path returns the config file path. Thread-safe without locking because
// the path is immutable after construction.
func (h *Holder) Path() string {
	return h.path
}

// CacheLocation returns the current token cache location.
func (h *Holder) CacheLocation() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cacheLocation
}

// SetCacheLocation validates and replaces the token cache location. The
// previous value is kept when validation fails.
func (h *Holder) SetCacheLocation(location string) error {
	if err := ValidateCacheLocation(location); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.cacheLocation = location

	return nil
}
