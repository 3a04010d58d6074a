package idp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zitadel/oidc/v3/pkg/client"
	"golang.org/x/oauth2"
)

// DiscoverEndpoint reads the issuer's OpenID configuration and returns its
// OAuth2 endpoints, including the device authorization URL when advertised.
func DiscoverEndpoint(ctx context.Context, issuer string, httpClient *http.Client) (oauth2.Endpoint, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	disc, err := client.Discover(ctx, issuer, httpClient)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("idp: discovering %s: %w", issuer, err)
	}

	return oauth2.Endpoint{
		AuthURL:       disc.AuthorizationEndpoint,
		TokenURL:      disc.TokenEndpoint,
		DeviceAuthURL: disc.DeviceAuthorizationEndpoint,
	}, nil
}
