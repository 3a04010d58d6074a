package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pdmq/internal/identity"
	"github.com/tonimelisma/pdmq/internal/idp"
	"github.com/tonimelisma/pdmq/internal/tokencache"
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

// fakeProvider scripts identity-provider answers and records calls.
type fakeProvider struct {
	mu sync.Mutex

	accounts    []idp.Account
	accountsErr error

	silent    *idp.TokenResult
	silentErr error

	interactive     *idp.TokenResult
	interactiveErr  error
	interactiveHook func()

	silentCalls      []idp.Account
	interactiveCalls int
	domainHints      []string
	removed          []idp.Account
}

func (f *fakeProvider) Accounts(context.Context) ([]idp.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.accounts, f.accountsErr
}

func (f *fakeProvider) AcquireTokenSilent(_ context.Context, a idp.Account) (*idp.TokenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.silentCalls = append(f.silentCalls, a)

	return f.silent, f.silentErr
}

func (f *fakeProvider) AcquireTokenInteractive(_ context.Context, hint string) (*idp.TokenResult, error) {
	if f.interactiveHook != nil {
		f.interactiveHook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.interactiveCalls++
	f.domainHints = append(f.domainHints, hint)

	return f.interactive, f.interactiveErr
}

func (f *fakeProvider) RemoveAccount(_ context.Context, a idp.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removed = append(f.removed, a)

	return nil
}

type countingResetter struct{ n atomic.Int32 }

func (c *countingResetter) Reset() { c.n.Add(1) }

type countingPurger struct{ n atomic.Int32 }

func (c *countingPurger) Purge() error { c.n.Add(1); return nil }

type outcomes struct {
	mu    sync.Mutex
	state []string
}

func (o *outcomes) AuthOutcome(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = append(o.state, s)
}

func jdoe(t *testing.T) identity.Identity {
	t.Helper()

	id, err := identity.Resolve("jdoe", "@equinor.com")
	require.NoError(t, err)

	return id
}

func token(access, username string) *idp.TokenResult {
	return &idp.TokenResult{
		AccessToken: access,
		Account:     idp.Account{ID: username, Username: username},
	}
}

type harness struct {
	provider *fakeProvider
	engine   *countingResetter
	purger   *countingPurger
	outcomes *outcomes
	manager  *Manager
}

func newHarness(t *testing.T, p *fakeProvider) *harness {
	t.Helper()

	h := &harness{provider: p, engine: &countingResetter{}, purger: &countingPurger{}, outcomes: &outcomes{}}
	h.manager = NewManager(p, h.purger, h.engine, testLogger(t),
		WithRecorder(h.outcomes),
		WithDomainHint("3aa4a235-b6e2-48d5-9195-7fcf05b459b0"),
	)

	return h
}

func TestObtain_SilentRefresh(t *testing.T) {
	h := newHarness(t, &fakeProvider{
		accounts: []idp.Account{{ID: "1", Username: "jdoe@equinor.com"}},
		silent:   token("silent-token", "jdoe@equinor.com"),
	})

	res, err := h.manager.Obtain(context.Background(), jdoe(t))
	require.NoError(t, err)
	assert.Equal(t, "silent-token", res.AccessToken)

	assert.Zero(t, h.provider.interactiveCalls)
	assert.Zero(t, h.engine.n.Load(), "silent success must not reset the engine")
	assert.Equal(t, []string{"silent_refresh_ok"}, h.outcomes.state)
}

func TestObtain_MatchIsCaseInsensitive(t *testing.T) {
	h := newHarness(t, &fakeProvider{
		accounts: []idp.Account{{ID: "1", Username: "JDoe@Equinor.Com"}},
		silent:   token("silent-token", "JDoe@Equinor.Com"),
	})

	_, err := h.manager.Obtain(context.Background(), jdoe(t))
	require.NoError(t, err)
	require.Len(t, h.provider.silentCalls, 1)
}

func TestObtain_FirstMatchWins(t *testing.T) {
	h := newHarness(t, &fakeProvider{
		accounts: []idp.Account{
			{ID: "other", Username: "someone@equinor.com"},
			{ID: "first", Username: "jdoe@equinor.com"},
			{ID: "second", Username: "JDOE@EQUINOR.COM"},
		},
		silent: token("silent-token", "jdoe@equinor.com"),
	})

	_, err := h.manager.Obtain(context.Background(), jdoe(t))
	require.NoError(t, err)
	require.Len(t, h.provider.silentCalls, 1)
	assert.Equal(t, "first", h.provider.silentCalls[0].ID)
}

func TestObtain_NoMatchGoesInteractive(t *testing.T) {
	h := newHarness(t, &fakeProvider{
		accounts:    []idp.Account{{ID: "1", Username: "someone@equinor.com"}},
		interactive: token("interactive-token", "jdoe@equinor.com"),
	})

	res, err := h.manager.Obtain(context.Background(), jdoe(t))
	require.NoError(t, err)
	assert.Equal(t, "interactive-token", res.AccessToken)

	assert.Empty(t, h.provider.silentCalls)
	assert.Equal(t, 1, h.provider.interactiveCalls)
	assert.Equal(t, []string{"3aa4a235-b6e2-48d5-9195-7fcf05b459b0"}, h.provider.domainHints)
	assert.Equal(t, int32(1), h.engine.n.Load())
	assert.Equal(t, []string{"interactive_auth_ok"}, h.outcomes.state)
}

func TestObtain_EmptyCacheGoesInteractive(t *testing.T) {
	h := newHarness(t, &fakeProvider{interactive: token("t", "jdoe@equinor.com")})

	_, err := h.manager.Obtain(context.Background(), jdoe(t))
	require.NoError(t, err)
	assert.Equal(t, 1, h.provider.interactiveCalls)
	assert.Equal(t, int32(1), h.engine.n.Load())
}

func TestObtain_SilentFallsThroughToInteractive(t *testing.T) {
	tests := []struct {
		name      string
		silent    *idp.TokenResult
		silentErr error
	}{
		{"nil result", nil, nil},
		{"empty access token", &idp.TokenResult{}, nil},
		{"provider error", nil, errors.New("refresh token revoked")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeProvider{
				accounts:    []idp.Account{{ID: "1", Username: "jdoe@equinor.com"}},
				silent:      tt.silent,
				silentErr:   tt.silentErr,
				interactive: token("interactive-token", "jdoe@equinor.com"),
			})

			res, err := h.manager.Obtain(context.Background(), jdoe(t))
			require.NoError(t, err)
			assert.Equal(t, "interactive-token", res.AccessToken)
			assert.Equal(t, 1, h.provider.interactiveCalls)
			assert.Equal(t, int32(1), h.engine.n.Load())
		})
	}
}

func TestObtain_InteractiveNoToken(t *testing.T) {
	for _, result := range []*idp.TokenResult{nil, {}} {
		h := newHarness(t, &fakeProvider{interactive: result})

		res, err := h.manager.Obtain(context.Background(), jdoe(t))
		require.Error(t, err)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrNoToken)

		var nt *NoTokenError
		require.ErrorAs(t, err, &nt)
		assert.Equal(t, "jdoe", nt.ShortName)
		assert.Contains(t, err.Error(), "jdoe")

		assert.Equal(t, int32(1), h.engine.n.Load())
		assert.Equal(t, []string{"interactive_auth_failed"}, h.outcomes.state)
	}
}

func TestObtain_InteractiveProviderErrorPropagates(t *testing.T) {
	boom := errors.New("authority unreachable")
	h := newHarness(t, &fakeProvider{interactiveErr: boom})

	_, err := h.manager.Obtain(context.Background(), jdoe(t))
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoToken)
	assert.Contains(t, err.Error(), "session: interactive sign-in")
}

func TestObtain_CorruptCacheTreatedAsEmpty(t *testing.T) {
	corrupt := &tokencache.CorruptCacheError{Location: "/tmp/x.bin", Err: errors.New("bad json")}
	h := newHarness(t, &fakeProvider{
		accountsErr: corrupt,
		interactive: token("interactive-token", "jdoe@equinor.com"),
	})

	res, err := h.manager.Obtain(context.Background(), jdoe(t))
	require.NoError(t, err)
	assert.Equal(t, "interactive-token", res.AccessToken)
	// Store already purged itself.
	assert.Zero(t, h.purger.n.Load())
}

func TestObtain_UnreadableCacheIsPurged(t *testing.T) {
	h := newHarness(t, &fakeProvider{
		accountsErr: errors.New("permission denied"),
		interactive: token("interactive-token", "jdoe@equinor.com"),
	})

	_, err := h.manager.Obtain(context.Background(), jdoe(t))
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.purger.n.Load())
}

func TestObtain_ContextErrorsPropagate(t *testing.T) {
	h := newHarness(t, &fakeProvider{
		accounts:  []idp.Account{{ID: "1", Username: "jdoe@equinor.com"}},
		silentErr: fmt.Errorf("refresh: %w", context.DeadlineExceeded),
	})

	_, err := h.manager.Obtain(context.Background(), jdoe(t))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, h.provider.interactiveCalls)

	h = newHarness(t, &fakeProvider{accountsErr: context.Canceled})
	_, err = h.manager.Obtain(context.Background(), jdoe(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.purger.n.Load())
}

func TestObtain_ConcurrentCallsShareAcquisition(t *testing.T) {
	release := make(chan struct{})
	p := &fakeProvider{
		interactive:     token("interactive-token", "jdoe@equinor.com"),
		interactiveHook: func() { <-release },
	}
	h := newHarness(t, p)
	id := jdoe(t)

	const callers = 5

	var wg sync.WaitGroup
	results := make([]*idp.TokenResult, callers)

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := h.manager.Obtain(context.Background(), id)
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, p.interactiveCalls)

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "interactive-token", r.AccessToken)
	}
}

func TestLogin_ForcesInteractive(t *testing.T) {
	h := newHarness(t, &fakeProvider{
		accounts:    []idp.Account{{ID: "1", Username: "jdoe@equinor.com"}},
		silent:      token("silent-token", "jdoe@equinor.com"),
		interactive: token("interactive-token", "jdoe@equinor.com"),
	})

	res, err := h.manager.Login(context.Background(), jdoe(t))
	require.NoError(t, err)
	assert.Equal(t, "interactive-token", res.AccessToken)
	assert.Empty(t, h.provider.silentCalls)
}

func TestLogout_RemovesMatchingAccounts(t *testing.T) {
	h := newHarness(t, &fakeProvider{
		accounts: []idp.Account{
			{ID: "1", Username: "jdoe@equinor.com"},
			{ID: "2", Username: "other@equinor.com"},
			{ID: "3", Username: "JDOE@equinor.com"},
		},
	})

	n, err := h.manager.Logout(context.Background(), jdoe(t))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, h.provider.removed, 2)
	assert.Equal(t, "1", h.provider.removed[0].ID)
	assert.Equal(t, "3", h.provider.removed[1].ID)
	assert.Equal(t, int32(1), h.engine.n.Load())
}

func TestPurgeCache(t *testing.T) {
	h := newHarness(t, &fakeProvider{})

	require.NoError(t, h.manager.PurgeCache())
	assert.Equal(t, int32(1), h.purger.n.Load())
	assert.Equal(t, int32(1), h.engine.n.Load())
}

func TestWithLogger_SharesState(t *testing.T) {
	h := newHarness(t, &fakeProvider{interactive: token("t", "jdoe@equinor.com")})

	scoped := h.manager.WithLogger(testLogger(t).With(slog.String("call_id", "abc")))
	require.NotSame(t, h.manager, scoped)
	assert.Same(t, h.manager.group, scoped.group)

	_, err := scoped.Obtain(context.Background(), jdoe(t))
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.engine.n.Load())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "no_cache", NoCache.String())
	assert.Equal(t, "account_found", AccountFound.String())
	assert.Equal(t, "silent_refresh_failed", SilentRefreshFailed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
