package config

// Default values for configuration options. These are "layer 0" of the
// four-layer override chain and point at the PDM production database.
const (
	defaultProvider       = ProviderMSAL
	defaultTenantID       = "3aa4a235-b6e2-48d5-9195-7fcf05b459b0"
	defaultClientID       = "9ed0d36d-1034-475a-bdce-fa7b774473fb"
	defaultAuthorityHost  = "https://login.microsoftonline.com/"
	defaultScope          = "https://database.windows.net/.default"
	defaultDomainSuffix   = "@equinor.com"
	defaultFlow           = FlowInteractive
	defaultServer         = "pdmprod.database.windows.net"
	defaultDatabase       = "pdm"
	defaultDriver         = "ODBC Driver 18 for SQL Server"
	defaultFallbackDriver = "ODBC Driver 17 for SQL Server"
	defaultMaxOpenConns   = 4
	defaultConnLifetime   = "30m"
	defaultLogLevel       = "warn"
	defaultOutputFormat   = FormatAuto

	// DefaultCacheFileName is the token cache blob name used when no
	// location is configured.
	DefaultCacheFileName = "pdm_token_cache.bin"
)

// Identity-provider client kinds.
const (
	ProviderMSAL = "msal"
	ProviderOIDC = "oidc"
)

// Interactive authentication flows.
const (
	FlowInteractive = "interactive"
	FlowDeviceCode  = "device_code"
)

// Output formats.
const (
	FormatAuto  = "auto"
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			Provider:     defaultProvider,
			TenantID:     defaultTenantID,
			ClientID:     defaultClientID,
			Authority:    defaultAuthorityHost + defaultTenantID,
			Scopes:       []string{defaultScope},
			DomainSuffix: defaultDomainSuffix,
			Flow:         defaultFlow,
		},
		Database: DatabaseConfig{
			Server:          defaultServer,
			Database:        defaultDatabase,
			Driver:          defaultDriver,
			FallbackDriver:  defaultFallbackDriver,
			MaxOpenConns:    defaultMaxOpenConns,
			ConnMaxLifetime: defaultConnLifetime,
		},
		Cache: CacheConfig{
			Location: DefaultCacheLocation(),
		},
		Logging: LoggingConfig{
			LogLevel: defaultLogLevel,
		},
		Output: OutputConfig{
			Format: defaultOutputFormat,
		},
	}
}
