// Package logging provides structured logging for both CLI and server modes.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/eightd/eightd/internal/events"
)

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog   zerolog.Logger
	mode   string // "cli" or "server"
	output io.Writer
	file   *lumberjack.Logger
}

// Options configures NewLogger.
type Options struct {
	// Mode is "cli" (console on stdout) or "server" (console on stderr).
	Mode string

	// File enables a rotating JSON log file in addition to the console.
	File string
}

// NewLogger creates a new logger for the specified mode.
func NewLogger(opts Options) *Logger {
	var console io.Writer
	if opts.Mode == "cli" {
		// CLI mode: stdout for logs, stderr is reserved for progress bars
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	} else {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	l := &Logger{mode: opts.Mode, output: console}

	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		l.output = zerolog.MultiLevelWriter(console, l.file)
	}

	l.zlog = zerolog.New(l.output).With().Timestamp().Logger()
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger(Options{Mode: "cli"})
}

// NewWriterLogger creates a logger that writes plain JSON lines to w. Used by tests.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{
		zlog:   zerolog.New(w).With().Timestamp().Logger(),
		mode:   "test",
		output: w,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), mode: "nop", output: io.Discard}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Str("component", component).Logger(),
		mode:   l.mode,
		output: l.output,
		file:   l.file,
	}
}

// Close flushes and closes the rotating file sink, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// AttachEventBus logs every workflow event published on bus until the bus closes.
// It returns a channel that is closed once the bus has been drained.
func (l *Logger) AttachEventBus(bus *events.EventBus) <-chan struct{} {
	done := make(chan struct{})
	ch := bus.SubscribeAll()

	go func() {
		defer close(done)
		for ev := range ch {
			switch e := ev.(type) {
			case *events.PhaseChangedEvent:
				l.Debug().
					Str("session", e.SessionID).
					Str("from", e.OldPhase).
					Str("to", e.NewPhase).
					Str("file", e.FileName).
					Msg("Workflow phase changed")
			case *events.NoticeEvent:
				evt := l.Warn()
				if e.Error != nil {
					evt = evt.Err(e.Error)
				}
				evt.Str("session", e.SessionID).Str("kind", e.Kind).Msg(e.Message)
			case *events.ResultEvent:
				msg := "Result handle acquired"
				if e.Type() == events.EventResultReleased {
					msg = "Result handle released"
				}
				l.Debug().Str("session", e.SessionID).Str("handle", e.HandleID).Int64("bytes", e.Size).Msg(msg)
			}
		}
	}()

	return done
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
