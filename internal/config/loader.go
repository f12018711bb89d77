package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"pkgdev/pkg/logging"
)

const (
	systemConfigPath = "/etc/pkgdev/config.yaml"
	userConfigDir    = "pkgdev"
	configFileName   = "config.yaml"
	repoConfigPath   = "metadata/pkgdev.yaml"
)

// userConfigFile resolves the per-user configuration path, honoring
// $XDG_CONFIG_HOME with the usual ~/.config fallback.
func userConfigFile() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, userConfigDir, configFileName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", userConfigDir, configFileName), nil
}

// Load builds the effective configuration from the layered sources: built-in
// defaults, the system file, the per-user file, and finally the repository's
// own metadata/pkgdev.yaml. Later layers override earlier ones; missing files
// are fine, malformed ones are not.
func Load(repoRoot string) (Config, error) {
	cfg := DefaultConfig()

	layers := []string{systemConfigPath}
	if userFile, err := userConfigFile(); err == nil {
		layers = append(layers, userFile)
	}
	if repoRoot != "" {
		layers = append(layers, filepath.Join(repoRoot, repoConfigPath))
	}

	return loadLayers(cfg, layers)
}

func loadLayers(cfg Config, layers []string) (Config, error) {
	for _, path := range layers {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
		}
		logging.Debug("ConfigLoader", "Loaded configuration layer %s", path)
	}
	return cfg, nil
}

// ResolveAPIKey returns the effective Bugzilla API key: the key file when
// configured, the inline key otherwise.
func (c Config) ResolveAPIKey() (string, error) {
	if c.Bugs.APIKeyFile != "" {
		data, err := os.ReadFile(c.Bugs.APIKeyFile)
		if err != nil {
			return "", fmt.Errorf("reading API key file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return c.Bugs.APIKey, nil
}
