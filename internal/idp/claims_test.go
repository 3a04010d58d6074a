package idp

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClaims(t *testing.T) {
	raw := signedIDToken(t, jwt.MapClaims{
		"preferred_username": "jdoe@equinor.com",
		"oid":                "00000000-0000-0000-0000-000000000001",
		"tid":                "3aa4a235-b6e2-48d5-9195-7fcf05b459b0",
	})

	claims, err := ParseClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "jdoe@equinor.com", claims["preferred_username"])
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", subjectFromClaims(claims))
}

func TestParseClaims_Empty(t *testing.T) {
	claims, err := ParseClaims("")
	require.NoError(t, err)
	assert.Nil(t, claims)
}

func TestParseClaims_Malformed(t *testing.T) {
	_, err := ParseClaims("not-a-jwt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idp: parsing id token")
}

func TestUsernameFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]any
		want   string
	}{
		{"preferred first", map[string]any{"preferred_username": "a@x", "upn": "b@x"}, "a@x"},
		{"upn fallback", map[string]any{"upn": "b@x", "email": "c@x"}, "b@x"},
		{"email fallback", map[string]any{"email": "c@x"}, "c@x"},
		{"skips empty", map[string]any{"preferred_username": "", "unique_name": "d@x"}, "d@x"},
		{"non-string ignored", map[string]any{"preferred_username": 42}, ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UsernameFromClaims(tt.claims))
		})
	}
}

func TestSubjectFromClaims_SubWhenNoOID(t *testing.T) {
	assert.Equal(t, "subject-1", subjectFromClaims(map[string]any{"sub": "subject-1"}))
	assert.Empty(t, subjectFromClaims(map[string]any{}))
}

func TestTokenResult_Usable(t *testing.T) {
	var nilResult *TokenResult
	assert.False(t, nilResult.Usable())
	assert.False(t, (&TokenResult{}).Usable())
	assert.True(t, (&TokenResult{AccessToken: "x"}).Usable())
}
