//go:build !darwin

package config

import (
	"os"
	"path/filepath"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "electroschematic-data"
		}
	}
	return filepath.Join(dir, "electroschematic")
}

func apiKeyHint() string {
	return " or " + secretsFilePath() + " (electroschematic: {gemini_api_key: ...})"
}
