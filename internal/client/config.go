// Package client implements the LudoStore desktop client: talking to the
// server API, keeping a local library of installed games, and persisting
// the player's settings.
package client

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the on-disk client configuration, stored as TOML in the
// user config directory.
type Settings struct {
	ServerURL  string `toml:"server_url"`
	Token      string `toml:"token"`
	InstallDir string `toml:"install_dir"`
}

const settingsFile = "ludoctl.toml"

// DefaultSettings returns the configuration used before the first login.
func DefaultSettings() Settings {
	return Settings{
		ServerURL:  "http://localhost:5231",
		InstallDir: defaultInstallDir(),
	}
}

func defaultInstallDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "LudoStore", "games")
	}
	return filepath.Join(".", "LudoStore", "games")
}

func settingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "LudoStore", settingsFile), nil
}

// LoadSettings reads the client configuration, falling back to defaults
// when no file exists yet.
func LoadSettings() (Settings, error) {
	path, err := settingsPath()
	if err != nil {
		return DefaultSettings(), err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return DefaultSettings(), err
	}

	s := DefaultSettings()
	if err := toml.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), err
	}
	if s.InstallDir == "" {
		s.InstallDir = defaultInstallDir()
	}
	return s, nil
}

// SaveSettings persists the configuration, creating the directory on
// first use.
func SaveSettings(s Settings) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
