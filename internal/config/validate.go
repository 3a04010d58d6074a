package config

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/jellydator/validation/is"
)

// minCacheLocationLength is the shortest accepted cache location. Shorter
// values are almost always a mistyped flag rather than a real path.
const minCacheLocationLength = 6

func init() {
	// Field errors name the TOML key the user wrote.
	validation.ErrorTag = "toml"
}

// ErrInvalidCacheLocation is returned when a cache location fails validation.
var ErrInvalidCacheLocation = errors.New("config: invalid cache location")

// ValidateCacheLocation checks a token cache location. It must be longer
// than five characters.
func ValidateCacheLocation(location string) error {
	err := validation.Validate(location,
		validation.Required,
		validation.Length(minCacheLocationLength, 0),
	)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidCacheLocation, location, err)
	}

	return nil
}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateAuth(&cfg.Auth); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	if err := validateDatabase(&cfg.Database); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	if err := ValidateCacheLocation(cfg.Cache.Location); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if err := validateOutput(&cfg.Output); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) error {
	err := validation.ValidateStruct(a,
		validation.Field(&a.Provider, validation.Required, validation.In(ProviderMSAL, ProviderOIDC)),
		validation.Field(&a.ClientID, validation.Required),
		validation.Field(&a.Scopes, validation.Required),
		validation.Field(&a.DomainSuffix, validation.Required),
		validation.Field(&a.Flow, validation.Required, validation.In(FlowInteractive, FlowDeviceCode)),
		validation.Field(&a.Authority, validation.When(a.Provider == ProviderMSAL, validation.Required, is.URL)),
		validation.Field(&a.Issuer, is.URL),
		validation.Field(&a.DeviceAuthURL, is.URL),
		validation.Field(&a.TokenURL, is.URL),
	)
	if err != nil {
		return err
	}

	if a.Provider == ProviderOIDC {
		if a.Issuer == "" && (a.DeviceAuthURL == "" || a.TokenURL == "") {
			return errors.New("oidc provider needs issuer or both device_auth_url and token_url")
		}

		if a.Flow != FlowDeviceCode {
			return errors.New("oidc provider only supports flow = \"device_code\"")
		}
	}

	return nil
}

func validateDatabase(d *DatabaseConfig) error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Server, validation.Required),
		validation.Field(&d.Database, validation.Required),
		validation.Field(&d.Driver, validation.Required),
		validation.Field(&d.MaxOpenConns, validation.Required, validation.Min(1)),
		validation.Field(&d.ConnMaxLifetime, validation.By(durationRule)),
	)
}

func validateLogging(l *LoggingConfig) error {
	return validation.ValidateStruct(l,
		validation.Field(&l.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

func validateOutput(o *OutputConfig) error {
	return validation.ValidateStruct(o,
		validation.Field(&o.Format, validation.In(FormatAuto, FormatTable, FormatCSV, FormatJSON)),
	)
}

// durationRule accepts an empty string or anything time.ParseDuration takes.
func durationRule(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}

	return nil
}

// ConnMaxLifetimeDuration returns the parsed connection lifetime; zero means
// connections are reused forever.
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	v, err := time.ParseDuration(d.ConnMaxLifetime)
	if err != nil {
		return 0
	}

	return v
}
