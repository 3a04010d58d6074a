// Package session obtains a database access token for an identity: cached
// account lookup, then silent refresh, then interactive sign-in.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/tonimelisma/pdmq/internal/identity"
	"github.com/tonimelisma/pdmq/internal/idp"
	"github.com/tonimelisma/pdmq/internal/tokencache"
)

// CachePurger deletes the persisted token cache.
type CachePurger interface {
	Purge() error
}

// EngineResetter disposes the cached connection engine. It is called after
// every interactive sign-in so the next connection uses the new token.
type EngineResetter interface {
	Reset()
}

// Recorder receives the terminal state of each acquisition.
type Recorder interface {
	AuthOutcome(state string)
}

// Manager runs the acquisition state machine. It is safe for concurrent use;
// concurrent Obtain calls for the same principal share one acquisition.
type Manager struct {
	provider   idp.Provider
	cache      CachePurger
	engine     EngineResetter
	domainHint string
	recorder   Recorder
	logger     *slog.Logger

	group *singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithDomainHint sets the domain hint passed to interactive sign-in.
func WithDomainHint(hint string) Option {
	return func(m *Manager) { m.domainHint = hint }
}

// NewManager returns a Manager. cache and engine may be nil.
func NewManager(provider idp.Provider, cache CachePurger, engine EngineResetter, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		cache:    cache,
		engine:   engine,
		logger:   logger,
		group:    &singleflight.Group{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithLogger returns a copy of m that logs to logger. The copy shares the
// provider, engine and in-flight acquisitions with m.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	c := *m
	c.logger = logger

	return &c
}

// Obtain returns a usable token for id. If interactive sign-in yields
// nothing, the error is a *NoTokenError (errors.Is ErrNoToken). Other errors
// are unexpected provider or context failures.
func (m *Manager) Obtain(ctx context.Context, id identity.Identity) (*idp.TokenResult, error) {
	v, err, shared := m.group.Do(id.PrincipalName, func() (any, error) {
		return m.obtain(ctx, id)
	})
	if shared {
		m.logger.Debug("joined in-flight token acquisition", slog.String("principal", id.PrincipalName))
	}

	if err != nil {
		return nil, err
	}

	return v.(*idp.TokenResult), nil
}

func (m *Manager) obtain(ctx context.Context, id identity.Identity) (*idp.TokenResult, error) {
	account, found, err := m.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if found {
		m.logger.Debug("found account in cache",
			slog.String("state", AccountFound.String()),
			slog.String("account", account.Username),
		)

		res, err := m.provider.AcquireTokenSilent(ctx, account)
		switch {
		case isContextErr(err):
			return nil, err
		case err != nil:
			m.logger.Debug("silent refresh failed",
				slog.String("state", SilentRefreshFailed.String()),
				slog.String("error", err.Error()),
			)
		case res.Usable():
			m.logger.Debug("silent refresh succeeded", slog.String("state", SilentRefreshOK.String()))
			m.record(SilentRefreshOK)

			return res, nil
		default:
			m.logger.Debug("silent refresh returned no token", slog.String("state", SilentRefreshFailed.String()))
		}
	} else {
		m.logger.Debug("no cached account for principal, going interactive",
			slog.String("principal", id.PrincipalName),
		)
	}

	return m.interactive(ctx, id)
}

// Login forces interactive sign-in for id, ignoring any cached account.
func (m *Manager) Login(ctx context.Context, id identity.Identity) (*idp.TokenResult, error) {
	return m.interactive(ctx, id)
}

func (m *Manager) interactive(ctx context.Context, id identity.Identity) (*idp.TokenResult, error) {
	res, err := m.provider.AcquireTokenInteractive(ctx, m.domainHint)
	m.resetEngine()

	if err != nil {
		if !isContextErr(err) {
			err = fmt.Errorf("session: interactive sign-in: %w", err)
		}

		return nil, err
	}

	if !res.Usable() {
		m.logger.Debug("interactive sign-in returned no token",
			slog.String("state", InteractiveAuthFailed.String()),
			slog.String("short_name", id.ShortName),
		)
		m.record(InteractiveAuthFailed)

		return nil, &NoTokenError{ShortName: id.ShortName}
	}

	if !id.Matches(res.Account.Username) {
		m.logger.Warn("signed-in account differs from requested principal",
			slog.String("principal", id.PrincipalName),
			slog.String("account", res.Account.Username),
		)
	}

	m.logger.Debug("interactive sign-in succeeded", slog.String("state", InteractiveAuthOK.String()))
	m.record(InteractiveAuthOK)

	return res, nil
}

// findAccount returns the first cached account whose username matches the
// principal. An unreadable cache is purged and treated as empty.
func (m *Manager) findAccount(ctx context.Context, id identity.Identity) (idp.Account, bool, error) {
	accounts, err := m.accounts(ctx)
	if err != nil {
		return idp.Account{}, false, err
	}

	for _, a := range accounts {
		if id.Matches(a.Username) {
			return a, true, nil
		}
	}

	return idp.Account{}, false, nil
}

// Accounts lists cached accounts, recovering from a corrupt cache the same
// way Obtain does.
func (m *Manager) Accounts(ctx context.Context) ([]idp.Account, error) {
	return m.accounts(ctx)
}

func (m *Manager) accounts(ctx context.Context) ([]idp.Account, error) {
	accounts, err := m.provider.Accounts(ctx)
	switch {
	case err == nil:
		return accounts, nil
	case isContextErr(err):
		return nil, err
	case errors.Is(err, tokencache.ErrCorruptCache):
		m.logger.Debug("token cache was corrupt and has been purged",
			slog.String("state", NoCache.String()),
			slog.String("error", err.Error()),
		)

		return nil, nil
	default:
		m.logger.Info("failed to read token cache, purging",
			slog.String("state", NoCache.String()),
			slog.String("error", err.Error()),
		)

		if m.cache != nil {
			if perr := m.cache.Purge(); perr != nil {
				m.logger.Warn("failed to purge token cache", slog.String("error", perr.Error()))
			}
		}

		return nil, nil
	}
}

// Logout removes every cached account matching id and returns how many were
// removed.
func (m *Manager) Logout(ctx context.Context, id identity.Identity) (int, error) {
	accounts, err := m.accounts(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, a := range accounts {
		if !id.Matches(a.Username) {
			continue
		}

		if err := m.provider.RemoveAccount(ctx, a); err != nil {
			return removed, fmt.Errorf("session: removing %s: %w", a.Username, err)
		}

		m.logger.Info("logout: removed cached account", slog.String("account", a.Username))
		removed++
	}

	if removed > 0 {
		m.resetEngine()
	}

	return removed, nil
}

// PurgeCache deletes the whole token cache.
func (m *Manager) PurgeCache() error {
	m.resetEngine()

	if m.cache == nil {
		return nil
	}

	return m.cache.Purge()
}

func (m *Manager) resetEngine() {
	if m.engine != nil {
		m.engine.Reset()
	}
}

func (m *Manager) record(s State) {
	if m.recorder != nil {
		m.recorder.AuthOutcome(s.String())
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
