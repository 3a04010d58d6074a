//go:build !windows

package tokencache

type unsupportedProtector struct{}

func platformProtector() Protector { return unsupportedProtector{} }

func (unsupportedProtector) Protect([]byte) ([]byte, error)   { return nil, ErrProtectionUnavailable }
func (unsupportedProtector) Unprotect([]byte) ([]byte, error) { return nil, ErrProtectionUnavailable }
