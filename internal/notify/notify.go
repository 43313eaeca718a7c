// Package notify sends desktop notifications when a headless batch finishes.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/eightd/eightd/internal/logging"
)

const appTitle = "eightd"

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	cfg     Config
	mu      sync.RWMutex

	// notify and alert default to beeep; tests replace them.
	notify func(title, message, icon string) error
	alert  func(title, message, icon string) error
}

// Config holds notification configuration.
type Config struct {
	// Enabled determines if notifications are sent at all.
	Enabled bool

	// ShowComplete notifies when every file in a batch succeeded.
	ShowComplete bool

	// ShowFailed notifies when at least one file failed.
	ShowFailed bool
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		ShowComplete: true,
		ShowFailed:   true,
	}
}

// NewNotifier creates a new notifier with the given configuration.
func NewNotifier(cfg *Config, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Notifier{
		logger:  logger,
		enabled: cfg.Enabled,
		cfg:     *cfg,
		notify:  beeep.Notify,
		alert:   beeep.Alert,
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// BatchComplete reports the outcome of a process run. outputDir is where the
// results were written.
func (n *Notifier) BatchComplete(succeeded, failed int, outputDir string) {
	if !n.IsEnabled() {
		return
	}

	if failed > 0 {
		if !n.cfg.ShowFailed {
			return
		}
		title := "8D conversion finished with errors"
		message := fmt.Sprintf("%d of %d file(s) failed.", failed, succeeded+failed)
		if err := n.notify(title, message, ""); err != nil {
			n.logger.Warn().Err(err).Msg("Failed to send batch failed notification")
		}
		return
	}

	if !n.cfg.ShowComplete {
		return
	}
	title := "8D conversion complete"
	message := fmt.Sprintf("%d file(s) written to:\n%s", succeeded, shortenPath(outputDir))
	if err := n.notify(title, message, ""); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send batch complete notification")
	}
}

// FileFailed notifies about a single failed file. Used when a batch has only
// one input so the reason can be shown directly.
func (n *Notifier) FileFailed(fileName string, errorMsg string) {
	if !n.IsEnabled() || !n.cfg.ShowFailed {
		return
	}

	title := "8D conversion failed"
	message := fmt.Sprintf("\"%s\" failed:\n%s", truncate(fileName, 40), truncate(errorMsg, 100))
	if err := n.notify(title, message, ""); err != nil {
		n.logger.Warn().Err(err).Str("file", fileName).Msg("Failed to send file failed notification")
	}
}

// Alert sends a prominent notification for problems that stop a run early,
// falling back to a plain notification when alerts are unsupported.
func (n *Notifier) Alert(message string) {
	if !n.IsEnabled() {
		return
	}

	title := appTitle + " alert"
	if err := n.alert(title, message, ""); err != nil {
		if err := n.notify(title, message, ""); err != nil {
			n.logger.Error().Err(err).Str("message", message).Msg("Failed to send alert notification")
		}
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// shortenPath abbreviates a long path for display in notifications.
func shortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))
	short := filepath.Join("...", parentDir, file)

	vol := filepath.VolumeName(path)
	if vol != "" && len(vol)+len(short)+1 <= maxLen {
		short = vol + string(filepath.Separator) + short
	}
	if len(short) > maxLen {
		return "..." + path[len(path)-(maxLen-3):]
	}
	return short
}
