package notify

import (
	"errors"
	"strings"
	"testing"
)

type sent struct {
	title, message string
}

func capture(n *Notifier) *[]sent {
	var got []sent
	n.notify = func(title, message, icon string) error {
		got = append(got, sent{title, message})
		return nil
	}
	n.alert = func(title, message, icon string) error {
		return errors.New("alerts unsupported")
	}
	return &got
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Enabled || !cfg.ShowComplete || !cfg.ShowFailed {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a long string", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 3, "..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
		}
	}
}

func TestShortenPath(t *testing.T) {
	long := "/home/user/music/a/very/long/path/that/exceeds/the/limit/for/display/out"
	if got := shortenPath(long); len(got) >= len(long) || !strings.HasSuffix(got, "display/out") {
		t.Errorf("shortenPath(%q) = %q", long, got)
	}
	if got := shortenPath("/tmp/out"); got != "/tmp/out" {
		t.Errorf("short path changed to %q", got)
	}
}

func TestBatchComplete(t *testing.T) {
	n := NewNotifier(nil, nil)
	got := capture(n)

	n.BatchComplete(3, 0, "/tmp/out")
	n.BatchComplete(2, 1, "/tmp/out")

	if len(*got) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(*got))
	}
	if (*got)[0].title != "8D conversion complete" || !strings.Contains((*got)[0].message, "3 file(s)") {
		t.Errorf("unexpected success notification %+v", (*got)[0])
	}
	if !strings.Contains((*got)[1].message, "1 of 3") {
		t.Errorf("unexpected failure notification %+v", (*got)[1])
	}
}

func TestBatchCompleteRespectsToggles(t *testing.T) {
	n := NewNotifier(&Config{Enabled: true, ShowComplete: false, ShowFailed: true}, nil)
	got := capture(n)

	n.BatchComplete(1, 0, "/tmp")
	if len(*got) != 0 {
		t.Errorf("success notification sent with ShowComplete=false")
	}
	n.FileFailed("song.mp3", "service returned 500")
	if len(*got) != 1 || !strings.Contains((*got)[0].message, "song.mp3") {
		t.Errorf("unexpected notifications %+v", *got)
	}
}

func TestAlertFallsBackToNotify(t *testing.T) {
	n := NewNotifier(nil, nil)
	got := capture(n)

	n.Alert("output directory is full")
	if len(*got) != 1 || (*got)[0].title != "eightd alert" {
		t.Errorf("expected fallback notification, got %+v", *got)
	}
}

func TestNotifierDisabled_NoSend(t *testing.T) {
	n := NewNotifier(&Config{Enabled: false}, nil)
	got := capture(n)

	n.BatchComplete(1, 0, "/tmp")
	n.BatchComplete(0, 1, "/tmp")
	n.FileFailed("a.mp3", "boom")
	n.Alert("boom")

	if len(*got) != 0 {
		t.Errorf("disabled notifier sent %d notifications", len(*got))
	}

	n.SetEnabled(true)
	if !n.IsEnabled() {
		t.Error("expected enabled after SetEnabled(true)")
	}
}
