// Package config persists user settings and remembered sessions.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Directory returns the halyard configuration directory.
//
// Locations:
//   - Windows: %USERPROFILE%\.config\halyard
//   - Unix: ~/.config/halyard
func Directory() (string, error) {
	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile != "" {
			return filepath.Join(userProfile, ".config", "halyard"), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "halyard"), nil
}

// EnsureDirectory creates the configuration directory if it doesn't exist.
// 0700 keeps stored credentials readable by the owner only.
func EnsureDirectory() (string, error) {
	dir, err := Directory()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// SettingsPath returns the path of the INI settings file.
func SettingsPath() (string, error) {
	dir, err := Directory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings"), nil
}

// SessionsPath returns the path of the remembered-sessions JSON file.
func SessionsPath() (string, error) {
	dir, err := Directory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.json"), nil
}
