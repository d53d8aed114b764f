package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfig names the environment variable that overrides discovery.
const EnvConfig = "SONGCAT_CONFIG"

// DefaultPath returns the XDG config path, $XDG_CONFIG_HOME/songcat/config.toml.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "./config.toml"
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "songcat", "config.toml")
}

// Discover finds the config file. Search order:
//  1. SONGCAT_CONFIG environment variable
//  2. ./config.toml
//  3. $XDG_CONFIG_HOME/songcat/config.toml
//  4. /etc/songcat/config.toml
func Discover() (string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%s=%s: %w", EnvConfig, envPath, err)
		}
		return envPath, nil
	}

	paths := searchPaths()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("config not found, checked: %s", strings.Join(paths, ", "))
}

func searchPaths() []string {
	return []string{
		"./config.toml",
		DefaultPath(),
		"/etc/songcat/config.toml",
	}
}
