package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig        = "PDMQ_CONFIG"
	EnvCacheLocation = "PDMQ_CACHE_LOCATION"
	EnvShortName     = "PDMQ_SHORTNAME"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath    string // PDMQ_CONFIG: override config file path
	CacheLocation string // PDMQ_CACHE_LOCATION: token cache blob path
	ShortName     string // PDMQ_SHORTNAME: login short name
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:    os.Getenv(EnvConfig),
		CacheLocation: os.Getenv(EnvCacheLocation),
		ShortName:     os.Getenv(EnvShortName),
	}
}
