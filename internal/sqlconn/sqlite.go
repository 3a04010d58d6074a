package sqlconn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteDriver opens the local SQLite file named by DATABASE. It has no
// server-side login; Authorize, if set, is called with the decoded token on
// every new connection and its error is returned from Connect.
type SQLiteDriver struct {
	Authorize func(token string) error
}

// Connector implements Driver.
func (d SQLiteDriver) Connector(cs ConnString, attrs Attrs) (driver.Connector, error) {
	if cs.Database == "" {
		return nil, &ConnStringError{Driver: cs.Driver, Err: errors.New("empty DATABASE")}
	}

	token := ""
	if frame, ok := attrs[AttrAccessToken]; ok {
		var err error
		if token, err = DecodeAccessToken(frame); err != nil {
			return nil, &ConnStringError{Driver: cs.Driver, Err: err}
		}
	}

	drv, err := sqliteDriver()
	if err != nil {
		return nil, err
	}

	return &dsnConnector{dsn: cs.Database, drv: drv, token: token, authorize: d.Authorize}, nil
}

// sqliteDriver returns the driver registered by modernc.org/sqlite.
func sqliteDriver() (driver.Driver, error) {
	db, err := sql.Open("sqlite", "")
	if err != nil {
		return nil, fmt.Errorf("sqlconn: loading sqlite: %w", err)
	}
	defer db.Close()

	return db.Driver(), nil
}

type dsnConnector struct {
	dsn       string
	drv       driver.Driver
	token     string
	authorize func(string) error
}

func (c *dsnConnector) Connect(_ context.Context) (driver.Conn, error) {
	if c.authorize != nil {
		if err := c.authorize(c.token); err != nil {
			return nil, err
		}
	}

	return c.drv.Open(c.dsn)
}

func (c *dsnConnector) Driver() driver.Driver {
	return c.drv
}
