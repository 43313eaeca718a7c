package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eightd/eightd/internal/events"
)

// syncBuffer guards a bytes.Buffer written from the bridge goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNamedLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf).Named("transfer")
	l.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"transfer"`) {
		t.Errorf("expected component field, got %s", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("expected message, got %s", out)
	}
}

func TestAttachEventBus_LogsNotices(t *testing.T) {
	buf := &syncBuffer{}
	l := NewWriterLogger(buf)

	bus := events.NewEventBus(8)
	done := l.AttachEventBus(bus)

	bus.PublishNotice("sess-1", "missing_input", "Please select a file to upload", nil)
	bus.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event bridge did not finish after bus close")
	}

	out := buf.String()
	if !strings.Contains(out, "Please select a file to upload") {
		t.Errorf("expected notice message in log, got %s", out)
	}
	if !strings.Contains(out, `"kind":"missing_input"`) {
		t.Errorf("expected notice kind in log, got %s", out)
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eightd.log")
	l := NewLogger(Options{Mode: "server", File: path})
	l.Info().Msg("written to file")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing message: %s", data)
	}
}
