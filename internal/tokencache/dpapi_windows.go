//go:build windows

package tokencache

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

type dpapi struct{}

func platformProtector() Protector { return dpapi{} }

func (dpapi) Protect(plain []byte) ([]byte, error) {
	var out windows.DataBlob

	err := windows.CryptProtectData(newBlob(plain), nil, nil, 0, nil, windows.CRYPTPROTECT_UI_FORBIDDEN, &out)
	if err != nil {
		return nil, fmt.Errorf("CryptProtectData: %w", err)
	}

	return takeBlob(&out), nil
}

func (dpapi) Unprotect(sealed []byte) ([]byte, error) {
	var out windows.DataBlob

	err := windows.CryptUnprotectData(newBlob(sealed), nil, nil, 0, nil, windows.CRYPTPROTECT_UI_FORBIDDEN, &out)
	if err != nil {
		return nil, fmt.Errorf("CryptUnprotectData: %w", err)
	}

	return takeBlob(&out), nil
}

func newBlob(b []byte) *windows.DataBlob {
	if len(b) == 0 {
		return &windows.DataBlob{}
	}

	return &windows.DataBlob{Size: uint32(len(b)), Data: &b[0]}
}

// takeBlob copies a system-allocated blob into Go memory and frees it.
func takeBlob(b *windows.DataBlob) []byte {
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(b.Data))) //nolint:errcheck // nothing to do on failure

	out := make([]byte, b.Size)
	copy(out, unsafe.Slice(b.Data, b.Size))

	return out
}
