package tokencache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
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

// jsonCache stands in for the identity provider's in-memory cache: it
// accepts only a JSON object, like the real serializer.
type jsonCache struct {
	entries    map[string]string
	unmarshals int
}

func (c *jsonCache) Marshal() ([]byte, error) {
	return json.Marshal(c.entries)
}

func (c *jsonCache) Unmarshal(data []byte) error {
	c.unmarshals++

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	c.entries = entries

	return nil
}

// xorProtector is a reversible stand-in for DPAPI.
type xorProtector struct {
	failUnprotect bool
}

func (p xorProtector) Protect(plain []byte) ([]byte, error) {
	return xor(plain), nil
}

func (p xorProtector) Unprotect(sealed []byte) ([]byte, error) {
	if p.failUnprotect {
		return nil, errors.New("key not valid for use in specified state")
	}

	return xor(sealed), nil
}

func xor(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[i] ^ 0x5a
	}

	return out
}
