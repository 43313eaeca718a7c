package diskspace

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckAvailableSpace(t *testing.T) {
	target := filepath.Join(t.TempDir(), "8d_song.mp3")

	t.Run("SmallResult", func(t *testing.T) {
		if err := CheckAvailableSpace(target, 4096, 1.1); err != nil {
			t.Errorf("expected room for 4KB, got: %v", err)
		}
	})

	t.Run("HugeResult", func(t *testing.T) {
		err := CheckAvailableSpace(target, 1<<55, 1.1)
		if err == nil {
			t.Skip("filesystem reports more than 32PB free")
		}
		if !IsInsufficientSpaceError(err) {
			t.Errorf("expected InsufficientSpaceError, got %T", err)
		}
	})

	t.Run("MarginApplied", func(t *testing.T) {
		available := GetAvailableSpace(target)
		if available == 0 {
			t.Skip("could not determine available space")
		}
		err := CheckAvailableSpace(target, available, 2.0)
		if !IsInsufficientSpaceError(err) {
			t.Fatalf("expected margin to push request over the limit, got %v", err)
		}
		if got := err.(*InsufficientSpaceError).RequiredBytes; got != available*2 {
			t.Errorf("RequiredBytes = %d, want %d", got, available*2)
		}
	})
}

func TestCheckAvailableSpace_UnknownDirPasses(t *testing.T) {
	if err := CheckAvailableSpace("/definitely/not/here/out.mp3", 1<<40, 1.1); err != nil {
		t.Errorf("unreadable filesystem should not block the write, got %v", err)
	}
	if n := GetAvailableSpace("/definitely/not/here/out.mp3"); n != 0 {
		t.Errorf("GetAvailableSpace = %d, want 0", n)
	}
}

func TestIsInsufficientSpaceError(t *testing.T) {
	err := &InsufficientSpaceError{Path: "/tmp/out.mp3", RequiredBytes: 1000, AvailableBytes: 500}

	if !IsInsufficientSpaceError(err) {
		t.Error("expected true for InsufficientSpaceError")
	}
	if !IsInsufficientSpaceError(fmt.Errorf("writing result: %w", err)) {
		t.Error("expected true for wrapped InsufficientSpaceError")
	}
	if IsInsufficientSpaceError(fmt.Errorf("some other error")) {
		t.Error("expected false for unrelated error")
	}
	if IsInsufficientSpaceError(nil) {
		t.Error("expected false for nil")
	}
}

func TestInsufficientSpaceErrorMessage(t *testing.T) {
	err := &InsufficientSpaceError{
		Path:           "/tmp/8d_audio.mp3",
		RequiredBytes:  1024 * 1024 * 100,
		AvailableBytes: 1024 * 1024 * 50,
	}

	msg := err.Error()
	for _, want := range []string{"/tmp/8d_audio.mp3", "100.00", "50.00"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
