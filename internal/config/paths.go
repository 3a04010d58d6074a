package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux   = "linux"
	platformDarwin  = "darwin"
	platformWindows = "windows"
)

const (
	appName        = "pdmq"
	configFileName = "config.toml"
)

// dirKind describes where one class of files lives on each platform.
type dirKind struct {
	xdgEnv     string   // Linux override, e.g. XDG_CACHE_HOME
	winEnv     string   // Windows base, e.g. LOCALAPPDATA
	unixBase   []string // under $HOME on Linux and other Unixes
	darwinBase []string // under $HOME on macOS
}

var (
	configDirKind = dirKind{
		xdgEnv:     "XDG_CONFIG_HOME",
		winEnv:     "APPDATA",
		unixBase:   []string{".config"},
		darwinBase: []string{"Library", "Application Support"},
	}
	cacheDirKind = dirKind{
		xdgEnv:     "XDG_CACHE_HOME",
		winEnv:     "LOCALAPPDATA",
		unixBase:   []string{".cache"},
		darwinBase: []string{"Library", "Caches"},
	}
)

// platformDir resolves k for goos. It returns "" when neither the platform
// variable nor a home directory is available.
func platformDir(goos, home string, k dirKind) string {
	switch goos {
	case platformLinux:
		if xdg := os.Getenv(k.xdgEnv); xdg != "" {
			return filepath.Join(xdg, appName)
		}
	case platformWindows:
		if base := os.Getenv(k.winEnv); base != "" {
			return filepath.Join(base, appName)
		}
	case platformDarwin:
		if home != "" {
			return filepath.Join(append(append([]string{home}, k.darwinBase...), appName)...)
		}

		return ""
	}

	if home == "" {
		return ""
	}

	return filepath.Join(append(append([]string{home}, k.unixBase...), appName)...)
}

func userHome() string {
	home, _ := os.UserHomeDir()
	return home
}

// DefaultConfigDir is where config.toml lives: $XDG_CONFIG_HOME/pdmq or
// ~/.config/pdmq on Linux, ~/Library/Application Support/pdmq on macOS and
// %APPDATA%\pdmq on Windows.
func DefaultConfigDir() string {
	return platformDir(runtime.GOOS, userHome(), configDirKind)
}

// DefaultCacheDir holds the token cache. It sits next to other per-user
// caches so it is never synced between machines.
func DefaultCacheDir() string {
	return platformDir(runtime.GOOS, userHome(), cacheDirKind)
}

// DefaultConfigPath is used when neither PDMQ_CONFIG nor --config is set.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// DefaultCacheLocation returns the token cache blob path used when nothing
// else is configured. Without a cache directory it falls back to a file in
// the working directory.
func DefaultCacheLocation() string {
	dir := DefaultCacheDir()
	if dir == "" {
		return DefaultCacheFileName
	}

	return filepath.Join(dir, DefaultCacheFileName)
}
