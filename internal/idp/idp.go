// Package idp adapts identity-provider client libraries to the small surface
// the session manager needs: list cached accounts, refresh silently, and fall
// back to an interactive login. Two adapters exist: MSAL for Azure AD and a
// generic OAuth2 device-flow client for any OIDC issuer.
//
// Adapters report "the provider answered but produced no token" as a nil
// result with a nil error. Errors are reserved for unexpected failures
// (transport, cache I/O, misconfiguration).
package idp

import (
	"context"
	"errors"
	"time"
)

// Flow selects how interactive login is carried out.
type Flow string

// Interactive login flows.
const (
	FlowInteractive Flow = "interactive"
	FlowDeviceCode  Flow = "device_code"
)

// ErrUnsupportedFlow is returned when an adapter cannot run the configured flow.
var ErrUnsupportedFlow = errors.New("idp: unsupported interactive flow")

// Account is a cached account as reported by the provider. The native value
// is the library's own account handle and is passed back on silent refresh.
type Account struct {
	ID       string
	Username string

	native any
}

// TokenResult is the outcome of a successful acquisition. It lives in memory
// only.
type TokenResult struct {
	AccessToken string
	IDClaims    map[string]any
	ExpiresOn   time.Time
	Account     Account
}

// Usable reports whether r carries an access token.
func (r *TokenResult) Usable() bool {
	return r != nil && r.AccessToken != ""
}

// DeviceAuth holds the device code fields shown to the user.
type DeviceAuth struct {
	UserCode        string
	VerificationURI string
	Message         string
}

// Provider is the identity-provider surface used by the session manager.
type Provider interface {
	Accounts(ctx context.Context) ([]Account, error)
	AcquireTokenSilent(ctx context.Context, account Account) (*TokenResult, error)
	AcquireTokenInteractive(ctx context.Context, domainHint string) (*TokenResult, error)
	RemoveAccount(ctx context.Context, account Account) error
}
