package sqlconn

import (
	"database/sql/driver"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testLogWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// testLogWriter adapts testing.T.Log to io.Writer for slog output.
type testLogWriter struct {
	t *testing.T
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// driverFunc adapts a function to Driver.
type driverFunc func(cs ConnString, attrs Attrs) (driver.Connector, error)

func (f driverFunc) Connector(cs ConnString, attrs Attrs) (driver.Connector, error) {
	return f(cs, attrs)
}

// serverError mimics a SQL Server login error.
type serverError struct {
	number int32
	msg    string
}

func (e serverError) Error() string         { return fmt.Sprintf("mssql: login error: %s (%d)", e.msg, e.number) }
func (e serverError) SQLErrorNumber() int32 { return e.number }

func tempDB(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "pdm.db")
}

type counter struct{ kinds []string }

func (c *counter) ConnectionError(kind string) { c.kinds = append(c.kinds, kind) }

type builds struct{ n int }

func (b *builds) EngineBuilt() { b.n++ }
