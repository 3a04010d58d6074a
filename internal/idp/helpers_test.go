package idp

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

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

// newTestStore returns a plain-file cache store in a temp dir and its path.
func newTestStore(t *testing.T) (*tokencache.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pdm_token_cache.bin")

	return tokencache.NewStore(path, tokencache.NewPlainFile(path), testLogger(t)), path
}

// signedIDToken builds an HS256 JWT carrying claims. Signature is irrelevant
// to the code under test.
func signedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return raw
}
