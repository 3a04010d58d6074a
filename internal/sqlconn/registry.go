package sqlconn

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Attrs are pre-connect attributes keyed by attribute id.
type Attrs map[int][]byte

// Driver builds a connector for a connection string. It plays the role of
// an installed ODBC driver library.
type Driver interface {
	Connector(cs ConnString, attrs Attrs) (driver.Connector, error)
}

// Registry maps driver names to drivers, like an ODBC driver manager's list
// of installed drivers. Names are matched case-insensitively.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
	names   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register installs d under name, replacing any previous driver.
func (r *Registry) Register(name string, d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(name))
	if _, ok := r.drivers[key]; !ok {
		r.names = append(r.names, name)
	}

	r.drivers[key] = d
}

// Names lists registered driver names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.names)
}

// Open resolves cs.Driver and asks it for a connector. A *ConnStringError
// from the driver is returned as is; any other failure means the driver
// could not be loaded.
func (r *Registry) Open(cs ConnString, attrs Attrs) (driver.Connector, error) {
	r.mu.RLock()
	d, ok := r.drivers[strings.ToLower(strings.TrimSpace(cs.Driver))]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w (driver %q)", ErrNoDefaultDriver, cs.Driver)
	}

	c, err := d.Connector(cs, attrs)
	if err != nil {
		var csErr *ConnStringError
		if errors.As(err, &csErr) {
			return nil, err
		}

		return nil, &DriverLoadError{Driver: cs.Driver, Err: err}
	}

	return c, nil
}

// managedConnector defers driver resolution to the first Connect, the way an
// engine resolves its driver lazily on first checkout.
type managedConnector struct {
	registry *Registry
	cs       ConnString
	attrs    Attrs

	mu       sync.Mutex
	resolved driver.Connector
}

func (m *managedConnector) Connect(ctx context.Context) (driver.Conn, error) {
	c, err := m.resolve()
	if err != nil {
		return nil, err
	}

	return c.Connect(ctx)
}

func (m *managedConnector) resolve() (driver.Connector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resolved != nil {
		return m.resolved, nil
	}

	c, err := m.registry.Open(m.cs, m.attrs)
	if err != nil {
		return nil, err
	}

	m.resolved = c

	return c, nil
}

func (m *managedConnector) Driver() driver.Driver {
	return unresolvedDriver{}
}

var errConnectorOnly = errors.New("sqlconn: driver is only usable through its connector")

type unresolvedDriver struct{}

func (unresolvedDriver) Open(string) (driver.Conn, error) {
	return nil, errConnectorOnly
}
