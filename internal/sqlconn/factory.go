// Package sqlconn opens SQL Server sessions authenticated with an OAuth2
// access token. It models an ODBC-style driver manager so that a machine
// missing the preferred driver falls back to an older one, and it classifies
// connection failures into a small set of kinds.
package sqlconn

import (
	"context"
	"database/sql"
	"log/slog"
)

// Target names the server and the drivers to try.
type Target struct {
	Server         string
	Database       string
	Driver         string
	FallbackDriver string
}

// ConnectionRecorder is told the kind of every classified failure.
type ConnectionRecorder interface {
	ConnectionError(kind string)
}

// Factory opens connections through an EngineCache.
type Factory struct {
	engines  *EngineCache
	target   Target
	recorder ConnectionRecorder
	logger   *slog.Logger
}

// NewFactory returns a Factory. recorder may be nil.
func NewFactory(engines *EngineCache, target Target, recorder ConnectionRecorder, logger *slog.Logger) *Factory {
	return &Factory{engines: engines, target: target, recorder: recorder, logger: logger}
}

// WithLogger returns a copy of f that logs to logger and shares its engines.
func (f *Factory) WithLogger(logger *slog.Logger) *Factory {
	c := *f
	c.logger = logger

	return &c
}

// Connect opens a session for token. The primary driver is tried first; if
// it is not installed or cannot be loaded, the engine is reset and the
// fallback driver is tried once. Any other failure resets the engine and is
// returned as a *ConnectionError.
func (f *Factory) Connect(ctx context.Context, token string) (*sql.Conn, error) {
	primary := ConnString{Driver: f.target.Driver, Server: f.target.Server, Database: f.target.Database}

	f.logger.Debug("connecting to database",
		slog.String("server", primary.Server),
		slog.String("database", primary.Database),
		slog.String("driver", primary.Driver),
	)

	conn, err := f.engines.Conn(ctx, primary, token)
	if err == nil {
		return conn, nil
	}

	used := primary.Driver

	if f.canFallBack(err) {
		f.logger.Debug("primary driver unavailable, retrying with fallback",
			slog.String("driver", primary.Driver),
			slog.String("fallback", f.target.FallbackDriver),
			slog.String("error", err.Error()),
		)

		f.engines.Reset()

		used = f.target.FallbackDriver

		conn, err = f.engines.Conn(ctx, primary.WithDriver(used), token)
		if err == nil {
			return conn, nil
		}
	}

	f.engines.Reset()

	cerr := &ConnectionError{Kind: classify(err), Driver: used, Err: err}

	f.logger.Debug("connection to database failed",
		slog.String("kind", cerr.Kind.String()),
		slog.String("driver", used),
		slog.String("error", err.Error()),
	)

	if hint := cerr.Hint(); hint != "" {
		f.logger.Info(hint)
	}

	if f.recorder != nil {
		f.recorder.ConnectionError(cerr.Kind.String())
	}

	return nil, cerr
}

func (f *Factory) canFallBack(err error) bool {
	fb := f.target.FallbackDriver

	return fb != "" && fb != f.target.Driver && driverUnavailable(err, f.target.Driver)
}
