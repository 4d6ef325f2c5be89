package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	configDirName   = "gcalfeed"
	credentialsFile = "credentials.json"
)

// GetConfigDir returns the configuration directory path (~/.config/gcalfeed)
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", configDirName)
	return configDir, nil
}

// GetCredentialsPath returns the path to the ClientLogin credentials file
func GetCredentialsPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, credentialsFile), nil
}

// ResolveCredentialsPath picks the credentials file to load. An explicit path
// is returned as is. Otherwise the default path is returned if the file
// exists, and "" if it does not.
func ResolveCredentialsPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	path, err := GetCredentialsPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to check credentials file: %w", err)
	}
	return path, nil
}
