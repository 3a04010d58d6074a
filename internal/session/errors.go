package session

import (
	"errors"
	"fmt"
)

// ErrNoToken means interactive authentication finished without producing a
// token: the user lacks access, the account does not exist, or sign-in was
// declined.
var ErrNoToken = errors.New("session: no token")

// NoTokenError reports ErrNoToken for a specific short name.
type NoTokenError struct {
	ShortName string
}

func (e *NoTokenError) Error() string {
	return fmt.Sprintf("session: no token obtained for %q", e.ShortName)
}

func (e *NoTokenError) Is(target error) bool {
	return target == ErrNoToken
}
