// Package paths plans output locations for batch conversions.
package paths

import (
	"fmt"
	"path/filepath"
	"strings"
)

// OutputFile pairs an input with the path its result will be written to.
type OutputFile struct {
	Index  int    // Position of the input on the command line, from 1
	Input  string // Path of the source audio
	Output string // Where the converted audio is written
}

// ResolveCollisions ensures every Output is unique. When several inputs map
// to the same Output (same base name from different directories, written to
// one --output directory), each of them gets its Index appended before the
// extension.
//
// Example: a/song.mp3 and b/song.mp3 into out/ become:
//   - out/8d_song_1.mp3
//   - out/8d_song_2.mp3
//
// Outputs that were already unique keep their names. A suffixed name that
// is still taken (c/song_1.mp3 above plans out/8d_song_1.mp3) gets the Index
// appended again until it is free.
//
// Returns the slice (modified in place) and how many files were renamed.
func ResolveCollisions(files []OutputFile) ([]OutputFile, int) {
	if len(files) == 0 {
		return files, 0
	}

	planned := make(map[string]int)
	for _, f := range files {
		if f.Output != "" {
			planned[f.Output]++
		}
	}

	taken := make(map[string]bool, len(files))
	for out, n := range planned {
		if n == 1 {
			taken[out] = true
		}
	}

	renamed := 0
	for i := range files {
		f := &files[i]
		if f.Output == "" || planned[f.Output] == 1 {
			continue
		}

		ext := filepath.Ext(f.Output)
		base := strings.TrimSuffix(f.Output, ext)
		candidate := fmt.Sprintf("%s_%d%s", base, f.Index, ext)
		for taken[candidate] {
			base = fmt.Sprintf("%s_%d", base, f.Index)
			candidate = fmt.Sprintf("%s_%d%s", base, f.Index, ext)
		}
		taken[candidate] = true
		f.Output = candidate
		renamed++
	}

	return files, renamed
}
