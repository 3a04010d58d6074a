package tokencache

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"

	"github.com/zalando/go-keyring"
)

// Keychain stores the blob base64-encoded in the OS keychain. A marker file
// at the cache location records that an entry exists so the location stays
// meaningful to users inspecting it.
type Keychain struct {
	service string
	account string
	marker  *PlainFile
}

// NewKeychain returns a keychain backend for service/account with a marker
// file at markerPath.
func NewKeychain(markerPath, service, account string) *Keychain {
	return &Keychain{service: service, account: account, marker: NewPlainFile(markerPath)}
}

func (k *Keychain) Kind() Kind      { return KindKeychain }
func (k *Keychain) Encrypted() bool { return true }

func (k *Keychain) Load() ([]byte, error) {
	secret, err := keyring.Get(k.service, k.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("keychain entry %s/%s: %w", k.service, k.account, fs.ErrNotExist)
	}

	if err != nil {
		return nil, fmt.Errorf("reading keychain entry %s/%s: %w", k.service, k.account, err)
	}

	data, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decoding keychain entry %s/%s: %w", k.service, k.account, err)
	}

	return data, nil
}

func (k *Keychain) Save(data []byte) error {
	if err := keyring.Set(k.service, k.account, base64.StdEncoding.EncodeToString(data)); err != nil {
		return fmt.Errorf("writing keychain entry %s/%s: %w", k.service, k.account, err)
	}

	return k.marker.Save([]byte("keychain:" + k.service + "\n"))
}

func (k *Keychain) Delete() error {
	err := keyring.Delete(k.service, k.account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keychain entry %s/%s: %w", k.service, k.account, err)
	}

	return k.marker.Delete()
}
