package tokencache

import (
	"errors"
	"fmt"
)

// ErrProtectionUnavailable is returned by the platform protector on hosts
// without a user-scoped data protection API.
var ErrProtectionUnavailable = errors.New("tokencache: data protection unavailable on this platform")

// Protector encrypts and decrypts blobs with a key bound to the current user.
type Protector interface {
	Protect(plain []byte) ([]byte, error)
	Unprotect(sealed []byte) ([]byte, error)
}

// EncryptedFile stores the blob in a file, sealed by a Protector.
type EncryptedFile struct {
	file      *PlainFile
	protector Protector
}

// NewEncryptedFile returns an encrypted-file backend at path.
func NewEncryptedFile(path string, protector Protector) *EncryptedFile {
	return &EncryptedFile{file: NewPlainFile(path), protector: protector}
}

func (e *EncryptedFile) Kind() Kind      { return KindEncryptedFile }
func (e *EncryptedFile) Encrypted() bool { return true }

func (e *EncryptedFile) Load() ([]byte, error) {
	sealed, err := e.file.Load()
	if err != nil {
		return nil, err
	}

	plain, err := e.protector.Unprotect(sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", e.file.path, err)
	}

	return plain, nil
}

func (e *EncryptedFile) Save(data []byte) error {
	sealed, err := e.protector.Protect(data)
	if err != nil {
		return fmt.Errorf("encrypting: %w", err)
	}

	return e.file.Save(sealed)
}

func (e *EncryptedFile) Delete() error {
	return e.file.Delete()
}
