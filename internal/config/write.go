package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// configFilePermissions is the standard permission mode for config files.
// Owner read/write, group and others read-only.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// ErrConfigExists is returned by WriteTemplate when the file is already
// present and overwrite was not requested.
var ErrConfigExists = errors.New("config: file already exists")

// configTemplate is the file written by "config init". Every setting is
// present as a commented-out default so users can discover the options
// without reading docs.
const configTemplate = `# pdmq configuration
# Uncomment and modify to override defaults.

[auth]
# Identity provider client: "msal" (Azure AD) or "oidc"
# provider = %[1]q
# tenant_id = %[2]q
# client_id = %[3]q
# authority = %[4]q
# scopes = [%[5]q]
# Appended to the upper-cased short name to form the login principal
# domain_suffix = %[6]q
# Interactive flow: "interactive" (browser) or "device_code"
# flow = %[7]q
# OIDC only: discovery issuer, or explicit endpoints
# issuer = ""
# device_auth_url = ""
# token_url = ""

[database]
# server = %[8]q
# database = %[9]q
# driver = %[10]q
# Tried once when the primary driver is not installed or cannot be loaded
# fallback_driver = %[11]q
# max_open_conns = %[12]d
# conn_max_lifetime = %[13]q

[cache]
# Token cache file; must be longer than five characters
# location = %[14]q

[logging]
# debug, info, warn, error
# log_level = %[15]q

[output]
# auto (table on a terminal, CSV when piped), table, csv, json
# format = %[16]q
`

// Template renders the commented default config file.
func Template() string {
	d := DefaultConfig()

	return fmt.Sprintf(configTemplate,
		d.Auth.Provider, d.Auth.TenantID, d.Auth.ClientID, d.Auth.Authority, d.Auth.Scopes[0],
		d.Auth.DomainSuffix, d.Auth.Flow,
		d.Database.Server, d.Database.Database, d.Database.Driver, d.Database.FallbackDriver,
		d.Database.MaxOpenConns, d.Database.ConnMaxLifetime,
		d.Cache.Location, d.Logging.LogLevel, d.Output.Format,
	)
}

// WriteTemplate writes Template() to path. An existing file is kept unless
// overwrite is set. The write is atomic (temp file + rename) and parent
// directories are created as needed.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}

	return atomicWriteFile(path, []byte(Template()))
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it into place.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
