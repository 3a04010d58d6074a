// Package tokencache persists the identity provider's serialized account and
// token state between process runs. The blob is opaque here: the store only
// moves bytes between the provider's in-memory cache and a platform backend
// (DPAPI-encrypted file, OS keychain, or plain file).
//
// A blob that cannot be read or parsed is deleted on the spot so the next
// run starts from an empty cache instead of failing the same way again.
package tokencache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
)

// ErrCorruptCache reports that the persisted blob was unreadable and has
// been purged.
var ErrCorruptCache = errors.New("tokencache: corrupt token cache")

// CorruptCacheError carries the location that was purged and the cause.
type CorruptCacheError struct {
	Location string
	Err      error
}

func (e *CorruptCacheError) Error() string {
	return fmt.Sprintf("tokencache: corrupt token cache at %s (purged): %v", e.Location, e.Err)
}

func (e *CorruptCacheError) Unwrap() []error {
	return []error{ErrCorruptCache, e.Err}
}

// Store implements cache.ExportReplace on top of a Persistence backend.
type Store struct {
	location string
	backend  Persistence
	logger   *slog.Logger
}

// Ensure Store satisfies the identity provider's cache contract at compile time.
var _ cache.ExportReplace = (*Store)(nil)

// Open returns a Store for location, choosing the backend for the host OS.
func Open(location string, logger *slog.Logger) (*Store, error) {
	backend, err := newPlatformPersistence(runtime.GOOS, location)
	if err != nil {
		return nil, err
	}

	return NewStore(location, backend, logger), nil
}

// NewStore returns a Store over an explicit backend.
func NewStore(location string, backend Persistence, logger *slog.Logger) *Store {
	logger.Debug("token cache persistence selected",
		slog.String("path", location),
		slog.String("kind", backend.Kind().String()),
		slog.Bool("encrypted", backend.Encrypted()),
	)

	return &Store{location: location, backend: backend, logger: logger}
}

// Location returns the path of the persisted blob.
func (s *Store) Location() string {
	return s.location
}

// Kind returns the backend kind in use.
func (s *Store) Kind() Kind {
	return s.backend.Kind()
}

// Encrypted reports whether the backend protects the blob at rest.
func (s *Store) Encrypted() bool {
	return s.backend.Encrypted()
}

// Load reads the persisted blob into c. A missing blob leaves c untouched.
// Any read or parse failure purges the blob and returns a *CorruptCacheError.
func (s *Store) Load(ctx context.Context, c cache.Unmarshaler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.backend.Load()
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("no token cache on disk", slog.String("path", s.location))
		return nil
	}

	if err != nil {
		return s.corrupt(err)
	}

	if len(data) == 0 {
		return nil
	}

	if err := c.Unmarshal(data); err != nil {
		return s.corrupt(err)
	}

	return nil
}

// Save writes the marshaled cache to the backend.
func (s *Store) Save(ctx context.Context, c cache.Marshaler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("tokencache: marshaling cache: %w", err)
	}

	if err := s.backend.Save(data); err != nil {
		return fmt.Errorf("tokencache: saving %s: %w", s.location, err)
	}

	s.logger.Debug("token cache persisted", slog.String("path", s.location))

	return nil
}

// Replace implements cache.ExportReplace.
func (s *Store) Replace(ctx context.Context, c cache.Unmarshaler, _ cache.ReplaceHints) error {
	return s.Load(ctx, c)
}

// Export implements cache.ExportReplace.
func (s *Store) Export(ctx context.Context, c cache.Marshaler, _ cache.ExportHints) error {
	return s.Save(ctx, c)
}

// Purge deletes the persisted blob. Returns nil if it is already absent.
func (s *Store) Purge() error {
	if err := s.backend.Delete(); err != nil {
		return fmt.Errorf("tokencache: deleting %s: %w", s.location, err)
	}

	return nil
}

func (s *Store) corrupt(cause error) error {
	s.logger.Info("deleting invalid token cache",
		slog.String("path", s.location),
		slog.String("error", cause.Error()),
	)

	if err := s.backend.Delete(); err != nil {
		s.logger.Warn("failed to delete invalid token cache",
			slog.String("path", s.location),
			slog.String("error", err.Error()),
		)
	}

	return &CorruptCacheError{Location: s.location, Err: cause}
}
