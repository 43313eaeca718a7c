package cli

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eightd/eightd/internal/config"
	"github.com/eightd/eightd/internal/constants"
	internalhttp "github.com/eightd/eightd/internal/http"
	"github.com/eightd/eightd/internal/version"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage eightd configuration",
		Long: `Configuration management commands for eightd.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Check that the processing service is reachable
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var (
		force    bool
		defaults bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for eightd.

The configuration is saved to ~/.config/eightd/config.ini unless --config
is given. Use --defaults to write the defaults without prompting and
--force to overwrite an existing file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := configPath()
			if err != nil {
				return err
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg := config.NewConfig()
			if !defaults {
				promptConfig(newPrompter(cmd.InOrStdin(), out), cfg)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}

			GetLogger().Debug().Str("path", path).Msg("Configuration saved")
			fmt.Fprintf(out, "\n✓ Configuration saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Write default settings without prompting")

	return cmd
}

func promptConfig(p *prompter, cfg *config.Config) {
	fmt.Fprintln(p.out, "eightd Configuration Setup")
	fmt.Fprintln(p.out, "==========================")
	fmt.Fprintln(p.out)

	cfg.ServiceURL = p.line("Processing service URL", cfg.ServiceURL)
	timeout := p.integer("Request timeout in seconds", int(cfg.RequestTimeout/time.Second), 1, 3600)
	cfg.RequestTimeout = time.Duration(timeout) * time.Second

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "Browser UI (press Enter for defaults)")
	fmt.Fprintln(p.out, "-------------------------------------")
	cfg.ListenAddr = p.line("Listen address", cfg.ListenAddr)
	cfg.MaxUploadMB = p.integer("Maximum upload size in MB", cfg.MaxUploadMB, 1, 1024)

	fmt.Fprintln(p.out)
	if p.confirm("Use an HTTP proxy?", false) {
		cfg.ProxyMode = p.line("Proxy mode (system, basic, ntlm)", "system")
		if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
			cfg.ProxyHost = p.line("Proxy host", "")
			cfg.ProxyPort = p.integer("Proxy port", 8080, 1, 65535)
			cfg.ProxyUser = p.line("Proxy user (blank for none)", "")
		}
		cfg.NoProxy = p.line("Hosts that bypass the proxy (comma-separated)", "")
	}

	cfg.NotificationsEnabled = p.confirm("Show desktop notifications when 'process' finishes?", false)
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/eightd/config.ini)
  2. Environment variables (EIGHTD_SERVICE_URL, EIGHTD_LISTEN_ADDR, EIGHTD_LOG_LEVEL)
  3. Command-line flags (--service-url)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path, _ := configPath()
			printConfig(cmd.OutOrStdout(), cfg, path)
			return nil
		},
	}
}

func printConfig(out io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Service:")
	fmt.Fprintf(out, "  Base URL:  %s\n", cfg.ServiceURL)
	fmt.Fprintf(out, "  Endpoint:  %s\n", cfg.GenerateAudioURL())
	fmt.Fprintf(out, "  Timeout:   %s\n", cfg.RequestTimeout)
	fmt.Fprintf(out, "  Retry Max: %d\n", cfg.RetryMax)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Browser UI:")
	fmt.Fprintf(out, "  Listen Address: %s\n", cfg.ListenAddr)
	fmt.Fprintf(out, "  Max Upload:     %d MB\n", cfg.MaxUploadMB)
	fmt.Fprintf(out, "  Session TTL:    %s\n", cfg.SessionTTL)
	if cfg.SessionKey != "" {
		// Never print any portion of the key
		fmt.Fprintf(out, "  Session Key:    <set (%d chars)>\n", len(cfg.SessionKey))
	} else {
		fmt.Fprintln(out, "  Session Key:    <generated per run>")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Proxy Settings:")
	fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
		fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
	}
	if cfg.NoProxy != "" {
		fmt.Fprintf(out, "  No Proxy:   %s\n", cfg.NoProxy)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Logging:")
	fmt.Fprintf(out, "  Level: %s\n", cfg.LogLevel)
	if cfg.LogFile != "" {
		fmt.Fprintf(out, "  File:  %s\n", cfg.LogFile)
		if strings.EqualFold(cfg.LogFile, config.AutoLogFile) {
			fmt.Fprintf(out, "         (%s)\n", config.LogDirectory())
		}
	}
	fmt.Fprintf(out, "\nNotifications: %t\n\n", cfg.NotificationsEnabled)

	fmt.Fprintf(out, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "  (file does not exist - using defaults)")
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that the processing service is reachable",
		Long: `Send a GET request to the service base URL through the configured proxy.
Any HTTP response counts as reachable; no audio is uploaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			logger := GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := ensureProxyPassword(cfg); err != nil {
				return err
			}

			fmt.Fprintf(out, "Service URL: %s\n", cfg.ServiceURL)
			fmt.Fprintln(out, "Testing connection...")

			client, err := internalhttp.CreateOptimizedClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to configure HTTP client: %w", err)
			}

			ctx, cancel := context.WithTimeout(GetContext(), constants.ProxyWarmupTimeout)
			defer cancel()

			status, err := checkService(ctx, client, cfg.ServiceURL)
			if err != nil {
				logger.Error().Err(err).Msg("Connection test failed")
				fmt.Fprintln(out, "✗ Connection FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}

			logger.Debug().Int("status", status).Msg("Connection test successful")
			fmt.Fprintf(out, "✓ Connection SUCCESSFUL (HTTP %d)\n", status)
			return nil
		},
	}
}

// checkService returns the HTTP status of a GET on baseURL.
func checkService(ctx context.Context, client *nethttp.Client, baseURL string) (int, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, baseURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := configPath()
			if err != nil {
				return err
			}
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n\n", path)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: eightd config init")
			}
			return nil
		},
	}
}
