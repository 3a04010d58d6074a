package sqlconn

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_UnknownDriver(t *testing.T) {
	r := NewRegistry()

	_, err := r.Open(ConnString{Driver: DriverODBC18}, nil)
	require.ErrorIs(t, err, ErrNoDefaultDriver)
	assert.Contains(t, err.Error(), DriverODBC18)

	_, err = r.Open(ConnString{}, nil)
	assert.ErrorIs(t, err, ErrNoDefaultDriver)
}

func TestRegistry_LoadFailure(t *testing.T) {
	r := NewRegistry()
	cause := errors.New("libmsodbcsql-18.so: cannot open shared object file")
	r.Register(DriverODBC18, driverFunc(func(ConnString, Attrs) (driver.Connector, error) {
		return nil, cause
	}))

	_, err := r.Open(ConnString{Driver: DriverODBC18}, nil)

	var loadErr *DriverLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, DriverODBC18, loadErr.Driver)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNoDefaultDriver)
}

func TestRegistry_ConnStringErrorPassesThrough(t *testing.T) {
	r := NewRegistry()
	r.Register(DriverSQLite, SQLiteDriver{})

	_, err := r.Open(ConnString{Driver: DriverSQLite}, nil)

	var csErr *ConnStringError
	require.ErrorAs(t, err, &csErr)

	var loadErr *DriverLoadError
	assert.False(t, errors.As(err, &loadErr))
}

func TestRegistry_CaseInsensitiveNames(t *testing.T) {
	r := NewRegistry()
	r.Register("SQLite3", SQLiteDriver{})
	r.Register("sqlite3", SQLiteDriver{})

	assert.Equal(t, []string{"SQLite3"}, r.Names())

	_, err := r.Open(ConnString{Driver: " SQLITE3 ", Database: tempDB(t)}, nil)
	require.NoError(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry("pdmq")
	assert.Equal(t, []string{DriverODBC18, DriverODBC17, DriverSQLite}, r.Names())
}

func TestManagedConnector_ResolvesOnce(t *testing.T) {
	calls := 0
	r := NewRegistry()
	r.Register("counting", driverFunc(func(cs ConnString, attrs Attrs) (driver.Connector, error) {
		calls++
		return SQLiteDriver{}.Connector(ConnString{Driver: DriverSQLite, Database: cs.Database}, attrs)
	}))

	mc := &managedConnector{registry: r, cs: ConnString{Driver: "counting", Database: tempDB(t)}}

	for range 3 {
		c, err := mc.Connect(context.Background())
		require.NoError(t, err)
		require.NoError(t, c.Close())
	}

	assert.Equal(t, 1, calls)

	_, err := mc.Driver().Open("x")
	assert.ErrorIs(t, err, errConnectorOnly)
}
