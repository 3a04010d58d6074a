package sqlconn

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"

	mssql "github.com/microsoft/go-mssqldb"
)

// Driver names understood by the default registry.
const (
	DriverODBC18 = "ODBC Driver 18 for SQL Server"
	DriverODBC17 = "ODBC Driver 17 for SQL Server"
	DriverSQLite = "SQLite3"
)

// MSSQLDriver connects to SQL Server / Azure SQL with go-mssqldb, passing
// the access token from AttrAccessToken.
type MSSQLDriver struct {
	// Encrypt is the go-mssqldb encrypt mode ("strict", "true", ...).
	Encrypt string
	AppName string
}

var errMissingToken = errors.New("sqlconn: access token attribute not set")

// Connector implements Driver. go-mssqldb is linked in, so every failure
// here is a *ConnStringError.
func (d MSSQLDriver) Connector(cs ConnString, attrs Attrs) (driver.Connector, error) {
	frame, ok := attrs[AttrAccessToken]
	if !ok {
		return nil, &ConnStringError{Driver: cs.Driver, Err: errMissingToken}
	}

	token, err := DecodeAccessToken(frame)
	if err != nil {
		return nil, &ConnStringError{Driver: cs.Driver, Err: err}
	}

	if cs.Server == "" {
		return nil, &ConnStringError{Driver: cs.Driver, Err: errors.New("empty SERVER")}
	}

	c, err := mssql.NewConnectorWithAccessTokenProvider(d.dsn(cs), func(context.Context) (string, error) {
		return token, nil
	})
	if err != nil {
		return nil, &ConnStringError{Driver: cs.Driver, Err: fmt.Errorf("parsing SERVER %q: %w", cs.Server, err)}
	}

	return c, nil
}

func (d MSSQLDriver) dsn(cs ConnString) string {
	q := url.Values{}
	q.Set("database", cs.Database)

	if d.Encrypt != "" {
		q.Set("encrypt", d.Encrypt)
	}

	if d.AppName != "" {
		q.Set("app name", d.AppName)
	}

	u := url.URL{Scheme: "sqlserver", Host: cs.Server, RawQuery: q.Encode()}

	return u.String()
}

// NewDefaultRegistry registers both SQL Server driver generations and the
// local SQLite driver.
func NewDefaultRegistry(appName string) *Registry {
	r := NewRegistry()
	r.Register(DriverODBC18, MSSQLDriver{Encrypt: "strict", AppName: appName})
	r.Register(DriverODBC17, MSSQLDriver{Encrypt: "true", AppName: appName})
	r.Register(DriverSQLite, SQLiteDriver{})

	return r
}
