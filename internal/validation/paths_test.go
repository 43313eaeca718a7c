package validation

import (
	"path/filepath"
	"testing"
)

func TestValidateFilename(t *testing.T) {
	testCases := []struct {
		name        string
		filename    string
		expectValid bool
	}{
		{"simple", "song.mp3", true},
		{"with_spaces", "my song.mp3", true},
		{"with_dots", "take..2.mp3", true},
		{"hidden", ".hidden.wav", true},
		{"prefixed", "8d_song.mp3", true},
		{"unicode", "canción.ogg", true},

		{"empty", "", false},
		{"dotdot", "..", false},
		{"dot", ".", false},
		{"unix_separator", "dir/song.mp3", false},
		{"windows_separator", `dir\song.mp3`, false},
		{"traversal", "../song.mp3", false},
		{"null_byte", "song\x00.mp3", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilename(tc.filename)
			if tc.expectValid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tc.filename, err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("expected %q to be rejected", tc.filename)
			}
		})
	}
}

func TestValidatePathInDirectory(t *testing.T) {
	base := t.TempDir()

	testCases := []struct {
		name        string
		path        string
		baseDir     string
		expectValid bool
	}{
		{"relative_inside", "8d_song.mp3", base, true},
		{"nested_inside", "sub/8d_song.mp3", base, true},
		{"absolute_inside", filepath.Join(base, "8d_song.mp3"), base, true},
		{"base_itself", base, base, true},
		{"dotdot_name_inside", "a..b", base, true},

		{"escape_relative", "../outside.mp3", base, false},
		{"escape_deep", "sub/../../outside.mp3", base, false},
		{"absolute_outside", "/etc/passwd", base, false},
		{"empty_path", "", base, false},
		{"empty_base", "song.mp3", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePathInDirectory(tc.path, tc.baseDir)
			if tc.expectValid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.expectValid && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"song.mp3":                   "song.mp3",
		`C:\Users\me\Music\song.mp3`: "song.mp3",
		"/home/me/song.mp3":          "song.mp3",
		"  padded.wav ":              "padded.wav",
		"evil\x00name.mp3":           "evilname.mp3",
		"dir/":                       "",
	}
	for in, want := range tests {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	out := t.TempDir()

	got, err := OutputPath(out, "/music/album/song.mp3", "8d_")
	if err != nil {
		t.Fatalf("OutputPath failed: %v", err)
	}
	if want := filepath.Join(out, "8d_song.mp3"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}

	if _, err := OutputPath(out, "/", ""); err == nil {
		t.Error("expected error for an input with no usable base name")
	}
}
