package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/pdmq/internal/config"
	"github.com/tonimelisma/pdmq/internal/idp"
	"github.com/tonimelisma/pdmq/internal/tokencache"
)

// ProviderFromConfig returns a ProviderFunc that builds the identity
// provider selected by auth.Provider. display receives device code
// instructions; openURL may be nil to use the system browser.
func ProviderFromConfig(
	auth config.AuthConfig, display func(idp.DeviceAuth), openURL func(string) error, httpClient *http.Client,
) ProviderFunc {
	return func(ctx context.Context, store *tokencache.Store, logger *slog.Logger) (idp.Provider, error) {
		switch auth.Provider {
		case config.ProviderOIDC:
			endpoint, err := oidcEndpoint(ctx, auth, httpClient)
			if err != nil {
				return nil, err
			}

			logger.Debug("using oidc provider",
				slog.String("token_url", endpoint.TokenURL),
				slog.Bool("device_flow", endpoint.DeviceAuthURL != ""),
			)

			return idp.NewOAuth(idp.OAuthOptions{
				ClientID: auth.ClientID,
				Scopes:   auth.Scopes,
				Endpoint: endpoint,
				Display:  display,
			}, store, logger), nil
		case config.ProviderMSAL, "":
			logger.Debug("using msal provider", slog.String("authority", auth.Authority))

			m, err := idp.NewMSAL(idp.MSALOptions{
				ClientID:  auth.ClientID,
				Authority: auth.Authority,
				Scopes:    auth.Scopes,
				Flow:      idp.Flow(auth.Flow),
				Display:   display,
				OpenURL:   openURL,
			}, store, logger)
			if err != nil {
				return nil, err
			}

			return m, nil
		default:
			return nil, fmt.Errorf("orchestrator: unknown identity provider %q", auth.Provider)
		}
	}
}

// oidcEndpoint prefers discovery from the issuer and falls back to the
// explicitly configured URLs.
func oidcEndpoint(ctx context.Context, auth config.AuthConfig, httpClient *http.Client) (oauth2.Endpoint, error) {
	if auth.Issuer == "" {
		return oauth2.Endpoint{
			TokenURL:      auth.TokenURL,
			DeviceAuthURL: auth.DeviceAuthURL,
		}, nil
	}

	endpoint, err := idp.DiscoverEndpoint(ctx, auth.Issuer, httpClient)
	if err != nil {
		return oauth2.Endpoint{}, err
	}

	if auth.TokenURL != "" {
		endpoint.TokenURL = auth.TokenURL
	}

	if auth.DeviceAuthURL != "" {
		endpoint.DeviceAuthURL = auth.DeviceAuthURL
	}

	return endpoint, nil
}
