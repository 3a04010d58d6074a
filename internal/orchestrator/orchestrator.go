// Package orchestrator wires identity resolution, token acquisition,
// connection and query execution into the single Query call.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tonimelisma/pdmq/internal/config"
	"github.com/tonimelisma/pdmq/internal/identity"
	"github.com/tonimelisma/pdmq/internal/idp"
	"github.com/tonimelisma/pdmq/internal/metrics"
	"github.com/tonimelisma/pdmq/internal/query"
	"github.com/tonimelisma/pdmq/internal/session"
	"github.com/tonimelisma/pdmq/internal/sqlconn"
	"github.com/tonimelisma/pdmq/internal/tokencache"
)

// ProviderFunc opens the identity provider bound to the token cache store.
type ProviderFunc func(ctx context.Context, store *tokencache.Store, logger *slog.Logger) (idp.Provider, error)

// StoreFunc opens the token cache at location.
type StoreFunc func(location string, logger *slog.Logger) (*tokencache.Store, error)

// Options are the collaborators of an Orchestrator. Holder, Engines,
// OpenProvider and Logger are required.
type Options struct {
	Holder       *config.Holder
	Engines      *sqlconn.EngineCache
	OpenProvider ProviderFunc
	// OpenStore defaults to tokencache.Open.
	OpenStore StoreFunc
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Orchestrator runs queries on behalf of named users. It is safe for
// concurrent use.
type Orchestrator struct {
	holder       *config.Holder
	engines      *sqlconn.EngineCache
	openProvider ProviderFunc
	openStore    StoreFunc
	metrics      *metrics.Metrics
	executor     *query.Executor
	logger       *slog.Logger

	mu       sync.Mutex
	location string
	current  *Session
}

// Session is the token cache and session manager for one cache location.
type Session struct {
	Store   *tokencache.Store
	Manager *session.Manager
}

// New returns an Orchestrator.
func New(opts Options) *Orchestrator {
	openStore := opts.OpenStore
	if openStore == nil {
		openStore = tokencache.Open
	}

	return &Orchestrator{
		holder:       opts.Holder,
		engines:      opts.Engines,
		openProvider: opts.OpenProvider,
		openStore:    openStore,
		metrics:      opts.Metrics,
		executor:     query.NewExecutor(opts.Metrics, opts.Logger),
		logger:       opts.Logger,
	}
}

// Query runs sqlText for shortName and returns the full result. An empty
// shortName means the OS login name. When the identity provider yields no
// token, a diagnostic naming the short name is logged and Query returns
// (nil, nil). verbose promotes this call's debug trace to info.
func (o *Orchestrator) Query(
	ctx context.Context,
	sqlText string,
	params map[string]any,
	shortName string,
	verbose bool,
) (*query.Table, error) {
	logger := o.callLogger(verbose)

	id, err := o.Principal(shortName)
	if err != nil {
		return nil, err
	}

	logger = logger.With(slog.String("principal", id.PrincipalName))

	sess, err := o.Session(ctx)
	if err != nil {
		return nil, err
	}

	logger.Debug("token cache persistence",
		slog.String("path", sess.Store.Location()),
		slog.String("kind", sess.Store.Kind().String()),
		slog.Bool("encrypted", sess.Store.Encrypted()),
	)

	tok, err := sess.Manager.WithLogger(logger).Obtain(ctx, id)
	if errors.Is(err, session.ErrNoToken) {
		logger.Warn(NoDataMessage(id.ShortName))

		return nil, nil //nolint:nilnil // no token is reported, not raised
	}

	if err != nil {
		return nil, err
	}

	cfg := o.holder.Config()
	factory := sqlconn.NewFactory(o.engines, target(cfg), o.metrics, logger)

	conn, err := factory.Connect(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	return o.executor.WithLogger(logger).Execute(ctx, conn, sqlText, params)
}

// ResetEngine disposes the cached connection engine.
func (o *Orchestrator) ResetEngine() {
	o.engines.Reset()
}

// Principal resolves shortName (or the OS login name when empty) against the
// configured domain suffix.
func (o *Orchestrator) Principal(shortName string) (identity.Identity, error) {
	if shortName == "" {
		shortName = identity.LoginName()
	}

	id, err := identity.Resolve(shortName, o.holder.Config().Auth.DomainSuffix)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("orchestrator: resolving identity: %w", err)
	}

	return id, nil
}

// Session returns the session for the current cache location, opening it
// when the location has changed since the last call.
func (o *Orchestrator) Session(ctx context.Context) (*Session, error) {
	location := o.holder.CacheLocation()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil && o.location == location {
		return o.current, nil
	}

	store, err := o.openStore(location, o.logger)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: opening token cache: %w", err)
	}

	provider, err := o.openProvider(ctx, store, o.logger)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: creating identity provider: %w", err)
	}

	mgr := session.NewManager(provider, store, o.engines, o.logger,
		session.WithRecorder(o.metrics),
		session.WithDomainHint(o.holder.Config().Auth.TenantID),
	)

	o.location = location
	o.current = &Session{Store: store, Manager: mgr}

	return o.current, nil
}

func (o *Orchestrator) callLogger(verbose bool) *slog.Logger {
	logger := o.logger
	if verbose {
		logger = slog.New(promoteHandler{inner: logger.Handler()})
	}

	return logger.With(slog.String("call_id", uuid.NewString()))
}

// NoDataMessage is the diagnostic reported when no token could be obtained
// for shortName.
func NoDataMessage(shortName string) string {
	return "Received no data. This may be due to the account retrieved not having " +
		"sufficient access or not existing. The shortname used was: " + shortName
}

func target(cfg *config.Config) sqlconn.Target {
	return sqlconn.Target{
		Server:         cfg.Database.Server,
		Database:       cfg.Database.Database,
		Driver:         cfg.Database.Driver,
		FallbackDriver: cfg.Database.FallbackDriver,
	}
}
