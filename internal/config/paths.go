package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AutoLogFile as the [logging] file value writes eightd.log into LogDirectory.
const AutoLogFile = "auto"

// LogDirectory returns the default directory for eightd log files.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\eightd\logs
//   - Unix: ~/.config/eightd/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "eightd-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "eightd", "logs")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "eightd-logs")
		}
		return filepath.Join(homeDir, ".config", "eightd", "logs")
	}
	return filepath.Join(configDir, "eightd", "logs")
}

// LogFilePath resolves the configured log file. Empty means stderr only.
// For AutoLogFile the log directory is created with owner-only permissions.
func (cfg *Config) LogFilePath() (string, error) {
	file := strings.TrimSpace(cfg.LogFile)
	if !strings.EqualFold(file, AutoLogFile) {
		return file, nil
	}
	dir := LogDirectory()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "eightd.log"), nil
}
