// Package identity resolves the login principal a query runs as. A short
// name such as "abcd" becomes the principal "ABCD@equinor.com", which is the
// username the identity provider reports for the cached account.
package identity

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrEmptyShortName is returned when no short name could be determined.
var ErrEmptyShortName = errors.New("identity: empty short name")

// Identity is the resolved login identity for one call. Immutable once
// resolved.
type Identity struct {
	ShortName     string
	PrincipalName string
}

// Resolve derives the principal name from a short name and a domain suffix
// (e.g. "@equinor.com"). The short name is upper-cased; the suffix is kept
// as given.
func Resolve(shortName, domainSuffix string) (Identity, error) {
	shortName = strings.TrimSpace(shortName)
	if shortName == "" {
		return Identity{}, ErrEmptyShortName
	}

	if domainSuffix != "" && !strings.HasPrefix(domainSuffix, "@") {
		domainSuffix = "@" + domainSuffix
	}

	return Identity{
		ShortName:     shortName,
		PrincipalName: cases.Upper(language.Und).String(shortName) + domainSuffix,
	}, nil
}

// Matches reports whether a provider-reported username refers to this
// identity. Comparison is case-insensitive.
func (id Identity) Matches(username string) bool {
	fold := cases.Fold()

	return fold.String(strings.TrimSpace(username)) == fold.String(id.PrincipalName)
}

func (id Identity) String() string {
	return fmt.Sprintf("%s (%s)", id.ShortName, id.PrincipalName)
}

// LoginName returns the current OS user's login name without any
// "DOMAIN\" prefix. Falls back to USER / USERNAME when the user database
// is unavailable. Returns "" when nothing is known.
func LoginName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return stripDomain(u.Username)
	}

	for _, env := range []string{"USER", "USERNAME", "LOGNAME"} {
		if v := os.Getenv(env); v != "" {
			return stripDomain(v)
		}
	}

	return ""
}

// stripDomain drops a Windows "DOMAIN\user" prefix.
func stripDomain(name string) string {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		return name[i+1:]
	}

	return name
}
