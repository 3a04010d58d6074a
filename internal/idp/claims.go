package idp

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ParseClaims decodes the payload of an ID token without verifying its
// signature. The token arrives directly from the token endpoint over TLS and
// is only used to label the cached account, never to authorize anything.
func ParseClaims(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("idp: parsing id token: %w", err)
	}

	return map[string]any(claims), nil
}

// usernameClaims are consulted in order to label an account.
var usernameClaims = []string{"preferred_username", "upn", "email", "unique_name"}

// UsernameFromClaims returns the first non-empty username-like claim.
func UsernameFromClaims(claims map[string]any) string {
	for _, key := range usernameClaims {
		if s, ok := claims[key].(string); ok && s != "" {
			return s
		}
	}

	return ""
}

// subjectFromClaims returns the stable account id: oid for Azure AD, sub otherwise.
func subjectFromClaims(claims map[string]any) string {
	for _, key := range []string{"oid", "sub"} {
		if s, ok := claims[key].(string); ok && s != "" {
			return s
		}
	}

	return ""
}
