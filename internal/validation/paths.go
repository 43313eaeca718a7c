// Package validation checks file names that cross a trust boundary: names
// sent by browsers and output paths derived from user input.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilename validates a filename (not a full path) before it is used
// in filepath.Join. It rejects empty names, path separators, null bytes
// and the literal "..".
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}
	// Separators are already rejected, so names like "take..2.mp3" stay legal
	if filename == ".." || filename == "." {
		return fmt.Errorf("filename cannot be %q", filename)
	}
	return nil
}

// ValidatePathInDirectory validates that path, resolved against baseDir,
// stays within baseDir.
//
//	ValidatePathInDirectory("../../etc/passwd", "/tmp/out") // error
//	ValidatePathInDirectory("8d_song.mp3", "/tmp/out")      // ok
func ValidatePathInDirectory(path string, baseDir string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if baseDir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	cleanBase, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(cleanBase, resolved)
	}

	rel, err := filepath.Rel(cleanBase, resolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s (base: %s)", path, baseDir)
	}
	return nil
}

// DisplayName reduces a client-supplied upload name to its final element.
// Some browsers send the full local path; both separator styles are
// stripped. Null bytes are dropped.
func DisplayName(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}

// OutputPath returns where the processed copy of inputPath is written:
// outDir joined with prefix plus the input's base name.
func OutputPath(outDir, inputPath, prefix string) (string, error) {
	name := prefix + filepath.Base(inputPath)
	if err := ValidateFilename(name); err != nil {
		return "", err
	}
	out := filepath.Join(outDir, name)
	if err := ValidatePathInDirectory(out, outDir); err != nil {
		return "", err
	}
	return out, nil
}
