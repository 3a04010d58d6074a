package orchestrator

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pdmq/internal/config"
	"github.com/tonimelisma/pdmq/internal/idp"
	"github.com/tonimelisma/pdmq/internal/sqlconn"
	"github.com/tonimelisma/pdmq/internal/tokencache"
)

//go:embed testdata/migrations/*.sql
var fixtureMigrations embed.FS

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

// logBuffer collects log output for assertions.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// fixtureDB creates a SQLite database with the wells fixture applied.
func fixtureDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pdm.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	subFS, err := fs.Sub(fixtureMigrations, "testdata/migrations")
	require.NoError(t, err)

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	require.NoError(t, err)

	results, err := provider.Up(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	return path
}

// fakeProvider scripts identity-provider answers and counts calls.
type fakeProvider struct {
	mu sync.Mutex

	accounts    []idp.Account
	silent      *idp.TokenResult
	interactive *idp.TokenResult

	silentCalls      int
	interactiveCalls int
	domainHints      []string
}

func (f *fakeProvider) Accounts(context.Context) ([]idp.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.accounts, nil
}

func (f *fakeProvider) AcquireTokenSilent(context.Context, idp.Account) (*idp.TokenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.silentCalls++

	return f.silent, nil
}

func (f *fakeProvider) AcquireTokenInteractive(_ context.Context, domainHint string) (*idp.TokenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.interactiveCalls++
	f.domainHints = append(f.domainHints, domainHint)

	return f.interactive, nil
}

func (f *fakeProvider) RemoveAccount(context.Context, idp.Account) error {
	return nil
}

func (f *fakeProvider) counts() (silent, interactive int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.silentCalls, f.interactiveCalls
}

var errNoToken = errors.New("sqlite: no access token")

// requireToken stands in for a server that rejects connections without a
// token.
func requireToken(token string) error {
	if token == "" {
		return errNoToken
	}

	return nil
}

type fixture struct {
	holder   *config.Holder
	registry *sqlconn.Registry
	engines  *sqlconn.EngineCache
	provider *fakeProvider
	opened   int
	orch     *Orchestrator
}

// newFixture wires an Orchestrator against a SQLite fixture database.
// Drivers are registered by the caller through register.
func newFixture(t *testing.T, logger *slog.Logger, provider *fakeProvider, register func(*sqlconn.Registry)) *fixture {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.Server = ""
	cfg.Database.Database = fixtureDB(t)
	cfg.Cache.Location = filepath.Join(t.TempDir(), config.DefaultCacheFileName)

	f := &fixture{
		holder:   config.NewHolder(cfg, ""),
		registry: sqlconn.NewRegistry(),
		provider: provider,
	}

	register(f.registry)

	f.engines = sqlconn.NewEngineCache(f.registry, sqlconn.PoolOptions{}, nil, logger)
	t.Cleanup(func() { f.engines.Close() })

	f.orch = New(Options{
		Holder:  f.holder,
		Engines: f.engines,
		OpenStore: func(location string, logger *slog.Logger) (*tokencache.Store, error) {
			return tokencache.NewStore(location, tokencache.NewPlainFile(location), logger), nil
		},
		OpenProvider: func(context.Context, *tokencache.Store, *slog.Logger) (idp.Provider, error) {
			f.opened++
			return f.provider, nil
		},
		Logger: logger,
	})

	return f
}

func sqliteAs(names ...string) func(*sqlconn.Registry) {
	return func(r *sqlconn.Registry) {
		for _, name := range names {
			r.Register(name, sqlconn.SQLiteDriver{Authorize: requireToken})
		}
	}
}
