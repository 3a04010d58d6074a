package sqlconn

import (
	"errors"
	"fmt"
)

// Driver manager errors. A name with no registered driver reports
// ErrNoDefaultDriver; a registered driver that cannot produce a connector
// reports *DriverLoadError.
var ErrNoDefaultDriver = errors.New("sqlconn: data source name not found and no default driver specified")

// DriverLoadError reports that a registered driver could not be loaded.
type DriverLoadError struct {
	Driver string
	Err    error
}

func (e *DriverLoadError) Error() string {
	return fmt.Sprintf("sqlconn: can't open lib %q: %v", e.Driver, e.Err)
}

func (e *DriverLoadError) Unwrap() error {
	return e.Err
}

// ConnStringError reports a connection string or pre-connect attribute that
// a driver rejected. The driver itself loaded fine, so it never triggers the
// fallback and classifies as KindOther.
type ConnStringError struct {
	Driver string
	Err    error
}

func (e *ConnStringError) Error() string {
	return fmt.Sprintf("sqlconn: %s: %v", e.Driver, e.Err)
}

func (e *ConnStringError) Unwrap() error {
	return e.Err
}

// Kind classifies a connection failure.
type Kind int

// Connection failure kinds.
const (
	KindOther Kind = iota
	KindNetworkRestricted
	KindAuthorizationFailed
	KindDriverUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNetworkRestricted:
		return "network_restricted"
	case KindAuthorizationFailed:
		return "authorization_failed"
	case KindDriverUnavailable:
		return "driver_unavailable"
	default:
		return "other"
	}
}

// Sentinels matched by errors.Is against a *ConnectionError.
var (
	ErrNetworkRestricted   = errors.New("sqlconn: connection refused from current IP address")
	ErrAuthorizationFailed = errors.New("sqlconn: login with access token failed")
	ErrDriverUnavailable   = errors.New("sqlconn: no usable driver")
	ErrConnection          = errors.New("sqlconn: connection failed")
)

// SQL Server error numbers that get their own kind.
const (
	errNumIPNotAllowed = 40615
	errNumLoginFailed  = 18456
)

// ConnectionError is a classified, terminal connection failure. The original
// driver error is kept and reachable through errors.As.
type ConnectionError struct {
	Kind   Kind
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("sqlconn: connecting with %q (%s): %v", e.Driver, e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

// Hint is a short suggestion for the user, or "" if there is none.
func (e *ConnectionError) Hint() string {
	switch e.Kind {
	case KindNetworkRestricted:
		return "Fails connecting from current IP-address. Are you on the corporate network?"
	case KindAuthorizationFailed:
		return "Login using token failed. Do you have access?"
	case KindDriverUnavailable:
		return "No SQL Server driver could be loaded."
	default:
		return ""
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNetworkRestricted:
		return ErrNetworkRestricted
	case KindAuthorizationFailed:
		return ErrAuthorizationFailed
	case KindDriverUnavailable:
		return ErrDriverUnavailable
	default:
		return ErrConnection
	}
}

// sqlErrorNumber is implemented by server errors from SQL Server drivers.
type sqlErrorNumber interface {
	SQLErrorNumber() int32
}

// classify maps err to a Kind without inspecting message text.
func classify(err error) Kind {
	var num sqlErrorNumber
	if errors.As(err, &num) {
		switch num.SQLErrorNumber() {
		case errNumIPNotAllowed:
			return KindNetworkRestricted
		case errNumLoginFailed:
			return KindAuthorizationFailed
		}
	}

	var loadErr *DriverLoadError
	if errors.Is(err, ErrNoDefaultDriver) || errors.As(err, &loadErr) {
		return KindDriverUnavailable
	}

	return KindOther
}

// driverUnavailable reports whether err means the named driver itself is
// missing, which is the only condition that triggers the fallback.
func driverUnavailable(err error, driver string) bool {
	if errors.Is(err, ErrNoDefaultDriver) {
		return true
	}

	var loadErr *DriverLoadError
	return errors.As(err, &loadErr) && loadErr.Driver == driver
}
