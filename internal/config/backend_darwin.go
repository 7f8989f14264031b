//go:build darwin

package config

import (
	"os"
	"path/filepath"
)

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "electroschematic")
	}
	return "electroschematic-data"
}

func apiKeyHint() string {
	return " or macOS Keychain (service: electroschematic, account: gemini_api_key)"
}
