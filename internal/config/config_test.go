package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvServiceURL, "")
	t.Setenv(EnvListenAddr, "")
	t.Setenv(EnvLogLevel, "")
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.ServiceURL != "http://localhost:8080" {
		t.Errorf("expected default ServiceURL http://localhost:8080, got %s", cfg.ServiceURL)
	}
	if cfg.RetryMax != 0 {
		t.Errorf("expected retries disabled by default, got %d", cfg.RetryMax)
	}
	if cfg.MaxUploadMB != 15 {
		t.Errorf("expected default MaxUploadMB 15, got %d", cfg.MaxUploadMB)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:3000" {
		t.Errorf("expected default listen addr, got %s", cfg.ListenAddr)
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)

	configPath := filepath.Join(t.TempDir(), "nested", "config.ini")

	cfg := NewConfig()
	cfg.ServiceURL = "https://audio.example.com/"
	cfg.RequestTimeout = 45 * time.Second
	cfg.RetryMax = 2
	cfg.ListenAddr = "0.0.0.0:4000"
	cfg.SessionTTL = 5 * time.Minute
	cfg.MaxUploadMB = 20
	cfg.ProxyMode = "basic"
	cfg.ProxyHost = "proxy.internal"
	cfg.ProxyPort = 3128
	cfg.ProxyUser = "alice"
	cfg.ProxyPassword = "secret"
	cfg.LogLevel = "debug"
	cfg.NotificationsEnabled = true

	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.ServiceURL != cfg.ServiceURL {
		t.Errorf("ServiceURL: expected %s, got %s", cfg.ServiceURL, loaded.ServiceURL)
	}
	if loaded.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout: expected 45s, got %v", loaded.RequestTimeout)
	}
	if loaded.RetryMax != 2 {
		t.Errorf("RetryMax: expected 2, got %d", loaded.RetryMax)
	}
	if loaded.SessionTTL != 5*time.Minute {
		t.Errorf("SessionTTL: expected 5m, got %v", loaded.SessionTTL)
	}
	if loaded.ProxyHost != "proxy.internal" || loaded.ProxyPort != 3128 {
		t.Errorf("proxy settings not round-tripped: %s:%d", loaded.ProxyHost, loaded.ProxyPort)
	}
	if loaded.ProxyPassword != "" {
		t.Error("proxy password must never be persisted")
	}
	if !loaded.NotificationsEnabled {
		t.Error("NotificationsEnabled should round-trip")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvServiceURL, "http://render-host:9000")
	t.Setenv(EnvListenAddr, ":8081")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServiceURL != "http://render-host:9000" {
		t.Errorf("env override for service URL not applied: %s", cfg.ServiceURL)
	}
	if cfg.ListenAddr != ":8081" {
		t.Errorf("env override for listen addr not applied: %s", cfg.ListenAddr)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("env override for log level not applied: %s", cfg.LogLevel)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "broken.ini")
	if err := os.WriteFile(path, []byte("[service\nbase_url = "), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed INI")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty service url", func(c *Config) { c.ServiceURL = " " }, ErrMissingServiceURL},
		{"relative service url", func(c *Config) { c.ServiceURL = "localhost:8080" }, ErrInvalidServiceURL},
		{"ftp service url", func(c *Config) { c.ServiceURL = "ftp://host" }, ErrInvalidServiceURL},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, ErrInvalidTimeout},
		{"negative retries", func(c *Config) { c.RetryMax = -1 }, ErrInvalidRetryMax},
		{"too many retries", func(c *Config) { c.RetryMax = 11 }, ErrInvalidRetryMax},
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }, ErrMissingListenAddr},
		{"zero upload limit", func(c *Config) { c.MaxUploadMB = 0 }, ErrInvalidMaxUpload},
		{"zero session ttl", func(c *Config) { c.SessionTTL = 0 }, ErrInvalidSessionTTL},
		{"unknown proxy mode", func(c *Config) { c.ProxyMode = "socks" }, ErrInvalidProxyMode},
		{"basic proxy without host", func(c *Config) { c.ProxyMode = "basic" }, ErrMissingProxyHost},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGenerateAudioURL(t *testing.T) {
	cfg := NewConfig()
	cfg.ServiceURL = "http://localhost:8080/"
	if got := cfg.GenerateAudioURL(); got != "http://localhost:8080/generate_audio" {
		t.Errorf("unexpected endpoint URL: %s", got)
	}
	if cfg.MaxUploadBytes() != 15*1024*1024 {
		t.Errorf("unexpected max upload bytes: %d", cfg.MaxUploadBytes())
	}
}

func TestLogFilePath(t *testing.T) {
	cfg := NewConfig()
	if got, err := cfg.LogFilePath(); err != nil || got != "" {
		t.Errorf("empty file = %q, %v", got, err)
	}

	cfg.LogFile = "/var/log/eightd.log"
	if got, _ := cfg.LogFilePath(); got != "/var/log/eightd.log" {
		t.Errorf("explicit file = %q", got)
	}

	if runtime.GOOS == "windows" {
		t.Skip("LogDirectory reads LOCALAPPDATA on Windows")
	}
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	t.Setenv("HOME", base)

	cfg.LogFile = "AUTO"
	got, err := cfg.LogFilePath()
	if err != nil {
		t.Fatalf("LogFilePath failed: %v", err)
	}
	if filepath.Base(got) != "eightd.log" || !strings.HasPrefix(got, base) {
		t.Errorf("auto file = %q, want eightd.log under %s", got, base)
	}
	if info, err := os.Stat(filepath.Dir(got)); err != nil || !info.IsDir() {
		t.Errorf("log directory not created: %v", err)
	}
}
