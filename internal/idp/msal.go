package idp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	msalerrors "github.com/AzureAD/microsoft-authentication-library-for-go/apps/errors"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
)

// MSALOptions configures the Azure AD public client.
type MSALOptions struct {
	ClientID  string
	Authority string
	Scopes    []string
	Flow      Flow

	// Display is called with the device code instructions when Flow is
	// FlowDeviceCode.
	Display func(DeviceAuth)
	// OpenURL overrides how the browser is launched for FlowInteractive.
	OpenURL func(string) error
}

// MSAL is a Provider backed by the Microsoft Authentication Library.
type MSAL struct {
	client  public.Client
	scopes  []string
	flow    Flow
	display func(DeviceAuth)
	openURL func(string) error
	logger  *slog.Logger
}

// NewMSAL creates a public client application that persists its state
// through store.
func NewMSAL(opts MSALOptions, store cache.ExportReplace, logger *slog.Logger) (*MSAL, error) {
	flow := opts.Flow
	if flow == "" {
		flow = FlowInteractive
	}

	if flow != FlowInteractive && flow != FlowDeviceCode {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFlow, flow)
	}

	client, err := public.New(opts.ClientID,
		public.WithAuthority(opts.Authority),
		public.WithCache(store),
	)
	if err != nil {
		return nil, fmt.Errorf("idp: creating public client: %w", err)
	}

	display := opts.Display
	if display == nil {
		display = func(DeviceAuth) {}
	}

	return &MSAL{
		client:  client,
		scopes:  opts.Scopes,
		flow:    flow,
		display: display,
		openURL: opts.OpenURL,
		logger:  logger,
	}, nil
}

// Accounts lists the accounts in the token cache. Cache errors (including a
// corrupt cache) are returned unchanged so callers can match on them.
func (m *MSAL) Accounts(ctx context.Context) ([]Account, error) {
	accounts, err := m.client.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, fromMSALAccount(a))
	}

	return out, nil
}

// AcquireTokenSilent returns a cached or refreshed token for account.
func (m *MSAL) AcquireTokenSilent(ctx context.Context, account Account) (*TokenResult, error) {
	native, ok := account.native.(public.Account)
	if !ok {
		return nil, fmt.Errorf("idp: account %q was not issued by this provider", account.Username)
	}

	res, err := m.client.AcquireTokenSilent(ctx, m.scopes, public.WithSilentAccount(native))
	if err != nil {
		return m.noResult("silent", err)
	}

	return fromMSALResult(res), nil
}

// AcquireTokenInteractive signs the user in with the configured flow.
func (m *MSAL) AcquireTokenInteractive(ctx context.Context, domainHint string) (*TokenResult, error) {
	if m.flow == FlowDeviceCode {
		return m.acquireByDeviceCode(ctx)
	}

	opts := []public.AcquireInteractiveOption{}
	if domainHint != "" {
		opts = append(opts, public.WithDomainHint(domainHint))
	}

	if m.openURL != nil {
		opts = append(opts, public.WithOpenURL(m.openURL))
	}

	m.logger.Info("starting interactive auth flow", slog.String("domain_hint", domainHint))

	res, err := m.client.AcquireTokenInteractive(ctx, m.scopes, opts...)
	if err != nil {
		return m.noResult("interactive", err)
	}

	return fromMSALResult(res), nil
}

func (m *MSAL) acquireByDeviceCode(ctx context.Context) (*TokenResult, error) {
	m.logger.Info("starting device code auth flow")

	dc, err := m.client.AcquireTokenByDeviceCode(ctx, m.scopes)
	if err != nil {
		return m.noResult("device code", err)
	}

	m.display(DeviceAuth{
		UserCode:        dc.Result.UserCode,
		VerificationURI: dc.Result.VerificationURL,
		Message:         dc.Result.Message,
	})

	res, err := dc.AuthenticationResult(ctx)
	if err != nil {
		return m.noResult("device code", err)
	}

	return fromMSALResult(res), nil
}

// RemoveAccount deletes every token cached for account.
func (m *MSAL) RemoveAccount(ctx context.Context, account Account) error {
	native, ok := account.native.(public.Account)
	if !ok {
		return fmt.Errorf("idp: account %q was not issued by this provider", account.Username)
	}

	if err := m.client.RemoveAccount(ctx, native); err != nil {
		return fmt.Errorf("idp: removing account: %w", err)
	}

	return nil
}

// noResult maps an authority rejection to a nil result. Everything else,
// including context cancellation, is returned as an error.
func (m *MSAL) noResult(op string, err error) (*TokenResult, error) {
	if isAuthorityRejection(err) {
		m.logger.Debug("identity provider returned no token",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)

		return nil, nil //nolint:nilnil // no token is a normal outcome
	}

	return nil, fmt.Errorf("idp: %s token acquisition: %w", op, err)
}

// isAuthorityRejection reports whether err is an error response from the
// token endpoint (invalid_grant, access_denied, expired device code...).
func isAuthorityRejection(err error) bool {
	var callErr msalerrors.CallErr
	return errors.As(err, &callErr)
}

func fromMSALAccount(a public.Account) Account {
	return Account{ID: a.HomeAccountID, Username: a.PreferredUsername, native: a}
}

func fromMSALResult(res public.AuthResult) *TokenResult {
	claims, err := ParseClaims(res.IDToken.RawToken)
	if err != nil || claims == nil {
		claims = msalIDTokenClaims(res)
	}

	return &TokenResult{
		AccessToken: res.AccessToken,
		IDClaims:    claims,
		ExpiresOn:   res.ExpiresOn,
		Account:     fromMSALAccount(res.Account),
	}
}

// msalIDTokenClaims rebuilds the claims MSAL already decoded, for results
// served from cache where the raw token is not retained.
func msalIDTokenClaims(res public.AuthResult) map[string]any {
	id := res.IDToken
	claims := map[string]any{}

	set := func(k, v string) {
		if v != "" {
			claims[k] = v
		}
	}

	set("preferred_username", id.PreferredUsername)
	set("name", id.Name)
	set("oid", id.Oid)
	set("tid", id.TenantID)
	set("sub", id.Subject)
	set("upn", id.UPN)
	set("email", id.Email)
	set("iss", id.Issuer)

	if len(claims) == 0 {
		return nil
	}

	return claims
}
