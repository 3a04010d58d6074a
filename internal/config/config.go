// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for pdmq. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth     AuthConfig     `toml:"auth"`
	Database DatabaseConfig `toml:"database"`
	Cache    CacheConfig    `toml:"cache"`
	Logging  LoggingConfig  `toml:"logging"`
	Output   OutputConfig   `toml:"output"`
}

// AuthConfig describes the identity-provider app registration and how the
// delegated token is obtained.
type AuthConfig struct {
	// Provider selects the identity-provider client: "msal" for Azure AD,
	// "oidc" for a generic OAuth2 device-code issuer.
	Provider     string   `toml:"provider"`
	TenantID     string   `toml:"tenant_id"`
	ClientID     string   `toml:"client_id"`
	Authority    string   `toml:"authority"`
	Scopes       []string `toml:"scopes"`
	DomainSuffix string   `toml:"domain_suffix"`
	// Flow is "interactive" (browser) or "device_code".
	Flow string `toml:"flow"`

	// Generic OIDC settings. Issuer enables discovery; the explicit URLs
	// win when set.
	Issuer        string `toml:"issuer"`
	DeviceAuthURL string `toml:"device_auth_url"`
	TokenURL      string `toml:"token_url"`
}

// DatabaseConfig names the target server and the driver preference order.
type DatabaseConfig struct {
	Server          string `toml:"server"`
	Database        string `toml:"database"`
	Driver          string `toml:"driver"`
	FallbackDriver  string `toml:"fallback_driver"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
}

// CacheConfig controls where the token cache blob lives.
type CacheConfig struct {
	Location string `toml:"location"`
}

// LoggingConfig controls log output level.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}

// OutputConfig controls how query results are rendered by the CLI.
type OutputConfig struct {
	Format string `toml:"format"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty strings mean "not specified".
type CLIOverrides struct {
	ConfigPath    string // --config flag (empty = use default)
	CacheLocation string // --cache-location flag
	ShortName     string // --shortname flag
}
