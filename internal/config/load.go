package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are treated as fatal errors with "did you
// mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	// An authority left unset follows the tenant, which may have been
	// overridden in the file.
	if !md.IsDefined("auth", "authority") && md.IsDefined("auth", "tenant_id") {
		cfg.Auth.Authority = defaultAuthorityHost + cfg.Auth.TenantID
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values. This supports the zero-config
// first-run experience: users can start without creating a config file.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolved is the effective configuration after all override layers, plus
// the short name requested through env or CLI (empty = OS login name).
type Resolved struct {
	*Config
	Path      string
	ShortName string
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	resolved := &Resolved{Config: cfg, Path: cfgPath}

	// 3. Apply env overrides
	if env.CacheLocation != "" {
		resolved.Cache.Location = env.CacheLocation
	}

	resolved.ShortName = env.ShortName

	// 4. Apply CLI overrides
	if cli.CacheLocation != "" {
		resolved.Cache.Location = cli.CacheLocation
	}

	if cli.ShortName != "" {
		resolved.ShortName = cli.ShortName
	}

	// 5. Overrides bypass the file validation, so the location is checked again.
	if err := ValidateCacheLocation(resolved.Cache.Location); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}
