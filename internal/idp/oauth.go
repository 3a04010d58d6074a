package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"golang.org/x/oauth2"
)

// OAuthOptions configures the generic device-flow provider.
type OAuthOptions struct {
	ClientID string
	Scopes   []string
	Endpoint oauth2.Endpoint

	// Display is called with the device code instructions.
	Display func(DeviceAuth)
}

// OAuth is a Provider for any OIDC issuer that supports the device
// authorization grant. Accounts and refresh tokens are kept in a JSON blob
// persisted through the same cache store as the MSAL adapter.
type OAuth struct {
	cfg     *oauth2.Config
	store   cache.ExportReplace
	display func(DeviceAuth)
	logger  *slog.Logger

	mu sync.Mutex
}

// NewOAuth returns an OAuth provider. The endpoint must carry a device
// authorization URL for interactive login to work.
func NewOAuth(opts OAuthOptions, store cache.ExportReplace, logger *slog.Logger) *OAuth {
	display := opts.Display
	if display == nil {
		display = func(DeviceAuth) {}
	}

	return &OAuth{
		cfg: &oauth2.Config{
			ClientID: opts.ClientID,
			Scopes:   opts.Scopes,
			Endpoint: opts.Endpoint,
		},
		store:   store,
		display: display,
		logger:  logger,
	}
}

// oauthState is the persisted blob.
type oauthState struct {
	Accounts []oauthAccount `json:"accounts"`
}

type oauthAccount struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (s *oauthState) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func (s *oauthState) Unmarshal(data []byte) error {
	var decoded oauthState
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("idp: decoding account cache: %w", err)
	}

	*s = decoded

	return nil
}

func (s *oauthState) find(id string) int {
	return slices.IndexFunc(s.Accounts, func(a oauthAccount) bool { return a.ID == id })
}

func (s *oauthState) upsert(a oauthAccount) {
	if i := s.find(a.ID); i >= 0 {
		s.Accounts[i] = a
		return
	}

	s.Accounts = append(s.Accounts, a)
}

func (o *OAuth) load(ctx context.Context) (*oauthState, error) {
	st := &oauthState{}
	if err := o.store.Replace(ctx, st, cache.ReplaceHints{}); err != nil {
		return nil, err
	}

	return st, nil
}

func (o *OAuth) save(ctx context.Context, st *oauthState) error {
	if err := o.store.Export(ctx, st, cache.ExportHints{}); err != nil {
		return fmt.Errorf("idp: persisting account cache: %w", err)
	}

	return nil
}

// Accounts lists cached accounts in the order they were first added.
func (o *OAuth) Accounts(ctx context.Context) ([]Account, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, err := o.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Account, 0, len(st.Accounts))
	for _, a := range st.Accounts {
		out = append(out, Account{ID: a.ID, Username: a.Username, native: a.ID})
	}

	return out, nil
}

// AcquireTokenSilent redeems the account's refresh token.
func (o *OAuth) AcquireTokenSilent(ctx context.Context, account Account) (*TokenResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, err := o.load(ctx)
	if err != nil {
		return nil, err
	}

	i := st.find(account.ID)
	if i < 0 || st.Accounts[i].RefreshToken == "" {
		o.logger.Debug("no refresh token cached for account", slog.String("account", account.Username))
		return nil, nil //nolint:nilnil // no token is a normal outcome
	}

	cached := st.Accounts[i]

	tok, err := o.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cached.RefreshToken}).Token()
	if err != nil {
		return o.noResult("silent", err)
	}

	o.logger.Debug("token refreshed", slog.Time("expiry", tok.Expiry))

	res := o.result(tok, cached)
	if tok.RefreshToken != "" && tok.RefreshToken != cached.RefreshToken {
		st.Accounts[i].RefreshToken = tok.RefreshToken

		if err := o.save(ctx, st); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// AcquireTokenInteractive runs the device authorization grant. domainHint is
// forwarded as the domain_hint parameter, which Azure AD honors and other
// issuers ignore.
func (o *OAuth) AcquireTokenInteractive(ctx context.Context, domainHint string) (*TokenResult, error) {
	if o.cfg.Endpoint.DeviceAuthURL == "" {
		return nil, fmt.Errorf("%w: issuer has no device authorization endpoint", ErrUnsupportedFlow)
	}

	o.logger.Info("starting device code auth flow")

	var opts []oauth2.AuthCodeOption
	if domainHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("domain_hint", domainHint))
	}

	da, err := o.cfg.DeviceAuth(ctx, opts...)
	if err != nil {
		return o.noResult("device auth", err)
	}

	o.logger.Info("device code received, waiting for user authorization")

	o.display(DeviceAuth{
		UserCode:        da.UserCode,
		VerificationURI: da.VerificationURI,
		Message:         fmt.Sprintf("To sign in, open %s and enter the code %s.", da.VerificationURI, da.UserCode),
	})

	tok, err := o.cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return o.noResult("device code", err)
	}

	o.logger.Info("user authorized", slog.Time("expiry", tok.Expiry))

	claims := o.idClaims(tok)
	acct := oauthAccount{
		ID:           subjectFromClaims(claims),
		Username:     UsernameFromClaims(claims),
		RefreshToken: tok.RefreshToken,
	}

	if acct.ID == "" {
		acct.ID = acct.Username
	}

	res := &TokenResult{
		AccessToken: tok.AccessToken,
		IDClaims:    claims,
		ExpiresOn:   tok.Expiry,
		Account:     Account{ID: acct.ID, Username: acct.Username, native: acct.ID},
	}

	// An account without a username never matches a principal, so its
	// refresh token could not be used.
	if acct.Username == "" {
		o.logger.Warn("identity provider returned no username, account not cached; "+
			"request the openid scope to enable silent sign-in",
			slog.Bool("id_token", claims != nil),
		)

		return res, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	st, err := o.load(ctx)
	if err != nil {
		return nil, err
	}

	st.upsert(acct)

	if err := o.save(ctx, st); err != nil {
		return nil, err
	}

	return res, nil
}

// RemoveAccount forgets the account and its refresh token.
func (o *OAuth) RemoveAccount(ctx context.Context, account Account) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, err := o.load(ctx)
	if err != nil {
		return err
	}

	i := st.find(account.ID)
	if i < 0 {
		return nil
	}

	st.Accounts = slices.Delete(st.Accounts, i, i+1)

	return o.save(ctx, st)
}

func (o *OAuth) result(tok *oauth2.Token, acct oauthAccount) *TokenResult {
	return &TokenResult{
		AccessToken: tok.AccessToken,
		IDClaims:    o.idClaims(tok),
		ExpiresOn:   tok.Expiry,
		Account:     Account{ID: acct.ID, Username: acct.Username, native: acct.ID},
	}
}

func (o *OAuth) idClaims(tok *oauth2.Token) map[string]any {
	raw, _ := tok.Extra("id_token").(string)

	claims, err := ParseClaims(raw)
	if err != nil {
		o.logger.Debug("ignoring unparseable id token", slog.String("error", err.Error()))
		return nil
	}

	return claims
}

// noResult maps an error response from the token endpoint to a nil result.
func (o *OAuth) noResult(op string, err error) (*TokenResult, error) {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		o.logger.Debug("identity provider returned no token",
			slog.String("op", op),
			slog.String("error_code", rerr.ErrorCode),
		)

		return nil, nil //nolint:nilnil // no token is a normal outcome
	}

	return nil, fmt.Errorf("idp: %s token acquisition: %w", op, err)
}
