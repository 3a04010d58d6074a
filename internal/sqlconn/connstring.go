package sqlconn

import "fmt"

// ConnString identifies a database through a named driver, in the ODBC form
// DRIVER=<name>;SERVER=<host>;DATABASE=<db>.
type ConnString struct {
	Driver   string
	Server   string
	Database string
}

func (c ConnString) String() string {
	return fmt.Sprintf("DRIVER=%s;SERVER=%s;DATABASE=%s", c.Driver, c.Server, c.Database)
}

// WithDriver returns a copy of c using driver.
func (c ConnString) WithDriver(driver string) ConnString {
	c.Driver = driver
	return c
}
