package tokencache

import "fmt"

// Kind identifies a persistence backend.
type Kind int

// Persistence backends, selected by host OS.
const (
	KindPlainFile Kind = iota
	KindEncryptedFile
	KindKeychain
)

func (k Kind) String() string {
	switch k {
	case KindPlainFile:
		return "plain-file"
	case KindEncryptedFile:
		return "encrypted-file"
	case KindKeychain:
		return "keychain"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Persistence stores one opaque blob. Load returns an error wrapping
// fs.ErrNotExist when nothing has been stored. Delete is idempotent.
type Persistence interface {
	Kind() Kind
	Encrypted() bool
	Load() ([]byte, error)
	Save(data []byte) error
	Delete() error
}

// keychainService names the keychain entry; the account is the location.
const keychainService = "pdmq"

// newPlatformPersistence picks the backend for goos: DPAPI-encrypted file on
// Windows, the login keychain on macOS, and a 0600 plain file elsewhere.
func newPlatformPersistence(goos, location string) (Persistence, error) {
	switch goos {
	case "windows":
		return NewEncryptedFile(location, platformProtector()), nil
	case "darwin":
		return NewKeychain(location, keychainService, location), nil
	default:
		return NewPlainFile(location), nil
	}
}
