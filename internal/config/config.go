// Package config provides configuration management for eightd.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/eightd/eightd/internal/constants"
)

// Config is the full runtime configuration.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\eightd\config.ini
//   - Unix: ~/.config/eightd/config.ini
//
// INI format:
//
//	[service]
//	base_url = http://localhost:8080
//	timeout_seconds = 120
//	retry_max = 0
//
//	[server]
//	listen_addr = 127.0.0.1:3000
//	session_ttl_minutes = 30
//	max_upload_mb = 15
//	session_key = <hex, optional>
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy =
//
//	[logging]
//	level = info
//	file =
//
//	[notifications]
//	enabled = false
type Config struct {
	// Remote processing service
	ServiceURL     string
	RequestTimeout time.Duration
	RetryMax       int

	// UI server
	ListenAddr  string
	SessionTTL  time.Duration
	MaxUploadMB int
	SessionKey  string // Optional; a random key is generated per process when empty

	// Proxy settings
	ProxyMode     string // "no-proxy", "ntlm", "basic", "system"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // Never persisted
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	// Logging
	LogLevel string
	LogFile  string

	// Desktop notifications for headless batches
	NotificationsEnabled bool
}

// Environment variable overrides
const (
	EnvServiceURL = "EIGHTD_SERVICE_URL"
	EnvListenAddr = "EIGHTD_LISTEN_ADDR"
	EnvLogLevel   = "EIGHTD_LOG_LEVEL"
)

// Validation errors
var (
	ErrMissingServiceURL = errors.New("service base_url is required")
	ErrInvalidServiceURL = errors.New("service base_url must be an absolute http(s) URL")
	ErrInvalidTimeout    = errors.New("service timeout_seconds must be positive")
	ErrInvalidRetryMax   = errors.New("service retry_max must be between 0 and 10")
	ErrMissingListenAddr = errors.New("server listen_addr is required")
	ErrInvalidMaxUpload  = errors.New("server max_upload_mb must be between 1 and 1024")
	ErrInvalidSessionTTL = errors.New("server session_ttl_minutes must be positive")
	ErrInvalidProxyMode  = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost  = errors.New("proxy host is required for basic and ntlm modes")
	ErrInvalidLogLevel   = errors.New("logging level must be one of debug, info, warn, error")
)

// NewConfig returns a config populated with defaults.
func NewConfig() *Config {
	return &Config{
		ServiceURL:     constants.DefaultServiceURL,
		RequestTimeout: constants.DefaultRequestTimeout,
		RetryMax:       constants.DefaultRetryMax,
		ListenAddr:     constants.DefaultListenAddr,
		SessionTTL:     constants.DefaultSessionTTL,
		MaxUploadMB:    constants.DefaultMaxUploadMB,
		ProxyMode:      "no-proxy",
		LogLevel:       "info",
	}
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		configDir = filepath.Join(userProfile, ".config", "eightd")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "eightd")
	}

	return filepath.Join(configDir, "config.ini"), nil
}

// Load reads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
// Environment overrides are applied after the file.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			cfg.ApplyEnv()
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.ApplyEnv()
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	service := iniFile.Section("service")
	cfg.ServiceURL = service.Key("base_url").MustString(cfg.ServiceURL)
	cfg.RequestTimeout = time.Duration(service.Key("timeout_seconds").MustInt(int(cfg.RequestTimeout/time.Second))) * time.Second
	cfg.RetryMax = service.Key("retry_max").MustInt(cfg.RetryMax)

	server := iniFile.Section("server")
	cfg.ListenAddr = server.Key("listen_addr").MustString(cfg.ListenAddr)
	cfg.SessionTTL = time.Duration(server.Key("session_ttl_minutes").MustInt(int(cfg.SessionTTL/time.Minute))) * time.Minute
	cfg.MaxUploadMB = server.Key("max_upload_mb").MustInt(cfg.MaxUploadMB)
	cfg.SessionKey = server.Key("session_key").String()

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	logging := iniFile.Section("logging")
	cfg.LogLevel = logging.Key("level").MustString(cfg.LogLevel)
	cfg.LogFile = logging.Key("file").String()

	cfg.NotificationsEnabled = iniFile.Section("notifications").Key("enabled").MustBool(false)

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overlays environment variable overrides onto cfg.
func (cfg *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvServiceURL)); v != "" {
		cfg.ServiceURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
}

// Save writes configuration to an INI file.
// Creates parent directories if they don't exist. The proxy password is never written.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	service, err := iniFile.NewSection("service")
	if err != nil {
		return fmt.Errorf("failed to create service section: %w", err)
	}
	service.Key("base_url").SetValue(cfg.ServiceURL)
	service.Key("timeout_seconds").SetValue(fmt.Sprintf("%d", int(cfg.RequestTimeout/time.Second)))
	service.Key("retry_max").SetValue(fmt.Sprintf("%d", cfg.RetryMax))

	server, err := iniFile.NewSection("server")
	if err != nil {
		return fmt.Errorf("failed to create server section: %w", err)
	}
	server.Key("listen_addr").SetValue(cfg.ListenAddr)
	server.Key("session_ttl_minutes").SetValue(fmt.Sprintf("%d", int(cfg.SessionTTL/time.Minute)))
	server.Key("max_upload_mb").SetValue(fmt.Sprintf("%d", cfg.MaxUploadMB))
	if cfg.SessionKey != "" {
		server.Key("session_key").SetValue(cfg.SessionKey)
	}

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(fmt.Sprintf("%d", cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)
	proxy.Key("warmup").SetValue(fmt.Sprintf("%t", cfg.ProxyWarmup))

	logging, err := iniFile.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	logging.Key("level").SetValue(cfg.LogLevel)
	logging.Key("file").SetValue(cfg.LogFile)

	notifications, err := iniFile.NewSection("notifications")
	if err != nil {
		return fmt.Errorf("failed to create notifications section: %w", err)
	}
	notifications.Key("enabled").SetValue(fmt.Sprintf("%t", cfg.NotificationsEnabled))

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the configuration. Returns nil if valid, or an error describing what's wrong.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.ServiceURL) == "" {
		return ErrMissingServiceURL
	}
	u, err := url.Parse(cfg.ServiceURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidServiceURL
	}
	if cfg.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if cfg.RetryMax < 0 || cfg.RetryMax > 10 {
		return ErrInvalidRetryMax
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return ErrMissingListenAddr
	}
	if cfg.MaxUploadMB < 1 || cfg.MaxUploadMB > 1024 {
		return ErrInvalidMaxUpload
	}
	if cfg.SessionTTL <= 0 {
		return ErrInvalidSessionTTL
	}

	switch strings.ToLower(cfg.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if strings.TrimSpace(cfg.ProxyHost) == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	return nil
}

// MaxUploadBytes returns the drop-zone size limit in bytes.
func (cfg *Config) MaxUploadBytes() int64 {
	return int64(cfg.MaxUploadMB) * 1024 * 1024
}

// GenerateAudioURL returns the full endpoint URL for the processing call.
func (cfg *Config) GenerateAudioURL() string {
	return strings.TrimSuffix(cfg.ServiceURL, "/") + constants.GenerateAudioPath
}
