package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eightd/eightd/internal/config"
	"github.com/eightd/eightd/internal/constants"
	"github.com/eightd/eightd/internal/events"
	"github.com/eightd/eightd/internal/logging"
	"github.com/eightd/eightd/internal/ratelimit"
	"github.com/eightd/eightd/internal/result"
	"github.com/eightd/eightd/internal/transfer"
	"github.com/eightd/eightd/internal/web"
)

// newServeCmd creates the 'serve' command.
func newServeCmd() *cobra.Command {
	var (
		listenAddr  string
		maxUploadMB int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser UI",
		Long: `Serve the browser UI for uploading audio, choosing panning frequency and
amplitude, and downloading the processed result as 8d_audio.mp3.

Each browser gets its own session. Sessions idle for longer than
session_ttl_minutes are dropped along with any result they hold.`,
		Example: `  eightd serve
  eightd serve --listen :9000 --service-url http://localhost:5000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("max-upload-mb") {
				cfg.MaxUploadMB = maxUploadMB
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := ensureProxyPassword(cfg); err != nil {
				return err
			}

			logger := newServerLogger(cfg)
			defer logger.Close()

			bus := events.NewEventBus(constants.EventBusDefaultBuffer)
			drained := logger.AttachEventBus(bus)
			defer func() {
				bus.Close()
				<-drained
			}()

			client, err := newTransferClient(cfg, logger)
			if err != nil {
				return err
			}

			srv, err := web.NewServer(web.Options{
				Config:   cfg,
				Uploader: client,
				Results:  result.NewStore(),
				Bus:      bus,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "eightd UI on http://%s (service: %s)\n", displayAddr(cfg.ListenAddr), cfg.ServiceURL)
			return srv.ListenAndServe(GetContext())
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", constants.DefaultListenAddr, "Address for the UI server")
	cmd.Flags().IntVar(&maxUploadMB, "max-upload-mb", constants.DefaultMaxUploadMB, "Largest accepted upload in MB")

	return cmd
}

// newServerLogger logs to stderr and, when configured, to a rotating file.
func newServerLogger(cfg *config.Config) *logging.Logger {
	return newFileLogger(cfg, "server").Named("serve")
}

// newFileLogger builds a logger for mode that also writes to the configured
// log file. A log file that cannot be resolved is reported and skipped.
func newFileLogger(cfg *config.Config, mode string) *logging.Logger {
	file, err := cfg.LogFilePath()
	logger := logging.NewLogger(logging.Options{Mode: mode, File: file})
	if err != nil {
		logger.Warn().Err(err).Msg("Log directory unavailable; logging to stderr only")
	}
	return logger
}

// newTransferClient builds the service client shared by every session or file,
// paced by one submission limiter.
func newTransferClient(cfg *config.Config, logger *logging.Logger) (*transfer.Client, error) {
	limiter := ratelimit.NewSubmissionRateLimiter().WithLogger(logger)
	client, err := transfer.NewClient(cfg, limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create service client: %w", err)
	}
	logger.Debug().Str("endpoint", client.Endpoint()).Int("retry_max", cfg.RetryMax).Msg("Service client ready")
	return client, nil
}

// displayAddr turns ":8080" into "localhost:8080" for the startup banner.
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
