// Package paths resolves where playerdb keeps its configuration, database
// and backups.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName is the directory name used under the platform base directories.
const appName = "playerdb"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "PLAYERDB_CONFIG_DIR"
	EnvDataDir   = "PLAYERDB_DATA_DIR"
	EnvBackupDir = "PLAYERDB_BACKUP_DIR"
)

// BackupDirName is the backup directory created inside the data directory.
const BackupDirName = "backups"

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/playerdb (fallback ~/.config/playerdb)
// macOS:   ~/Library/Application Support/playerdb
// Windows: %APPDATA%/playerdb
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific data directory.
//
// Linux:   $XDG_DATA_HOME/playerdb (fallback ~/.local/share/playerdb)
// macOS and Windows: same as DefaultConfigDir.
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, homeRel string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, appName), nil
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > PLAYERDB_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > config.yaml value > PLAYERDB_DATA_DIR env > DefaultDataDir().
func ResolveDataDir(flag, configValue string) (string, error) {
	return resolve(flag, configValue, EnvDataDir, DefaultDataDir)
}

// ResolveBackupDir returns the backup directory: flag > config.yaml value >
// PLAYERDB_BACKUP_DIR env > <dataDir>/backups.
func ResolveBackupDir(flag, configValue, dataDir string) (string, error) {
	return resolve(flag, configValue, EnvBackupDir, func() (string, error) {
		return filepath.Abs(filepath.Join(dataDir, BackupDirName))
	})
}

func resolve(flag, configValue, env string, fallback func() (string, error)) (string, error) {
	for _, v := range []string{flag, configValue, os.Getenv(env)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	return fallback()
}
