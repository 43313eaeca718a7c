// Package probe reads basic stream metadata from an audio file so the UI and
// CLI can show what was picked. It never gates submission: a file the probe
// cannot read is still sent to the service as-is.
package probe

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Format names reported in Info.Format.
const (
	FormatMP3    = "mp3"
	FormatWAV    = "wav"
	FormatVorbis = "ogg/vorbis"
)

var (
	ErrUnknownFormat = errors.New("unrecognized audio format")
	ErrEmpty         = errors.New("empty audio data")
	ErrMalformed     = errors.New("malformed stream")
)

// Info describes one audio stream.
type Info struct {
	Format     string        `json:"format"`
	SampleRate int           `json:"sampleRate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bitDepth,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// String renders a one-line summary, e.g. "mp3, 44100 Hz, 2 ch, 3m12s".
func (i *Info) String() string {
	parts := []string{i.Format, fmt.Sprintf("%d Hz", i.SampleRate), fmt.Sprintf("%d ch", i.Channels)}
	if i.BitDepth > 0 {
		parts = append(parts, fmt.Sprintf("%d-bit", i.BitDepth))
	}
	if i.Duration > 0 {
		parts = append(parts, i.Duration.Round(time.Second).String())
	}
	return strings.Join(parts, ", ")
}

// File probes the file at path.
func File(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Bytes(data, filepath.Base(path))
}

// Bytes probes an in-memory file. name is only used when the content has no
// recognizable signature. A decoder that panics on a corrupt stream is
// reported as ErrMalformed.
func Bytes(data []byte, name string) (info *Info, err error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	format := detect(data, name)
	defer func() {
		if r := recover(); r != nil {
			info, err = nil, fmt.Errorf("%s: %w: %v", format, ErrMalformed, r)
		}
	}()

	switch format {
	case FormatWAV:
		return probeWAV(data)
	case FormatVorbis:
		return probeVorbis(data)
	case FormatMP3:
		return probeMP3(data)
	}
	return nil, ErrUnknownFormat
}

// detect sniffs the container signature, falling back to the extension.
func detect(data []byte, name string) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatVorbis
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return FormatMP3
	case ".wav":
		return FormatWAV
	case ".ogg", ".oga":
		return FormatVorbis
	}
	return ""
}

func probeWAV(data []byte) (*Info, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wav: %w", ErrUnknownFormat)
	}
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}

	info := &Info{
		Format:     FormatWAV,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if d, err := dec.Duration(); err == nil {
		info.Duration = d
	}
	return info, nil
}

func probeMP3(data []byte) (*Info, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	// go-mp3 always decodes to 16-bit stereo, 4 bytes per frame
	info := &Info{
		Format:     FormatMP3,
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}
	if n := dec.Length(); n > 0 && info.SampleRate > 0 {
		frames := n / 4
		info.Duration = time.Duration(frames) * time.Second / time.Duration(info.SampleRate)
	}
	return info, nil
}

func probeVorbis(data []byte) (*Info, error) {
	r, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ogg: %w", err)
	}

	info := &Info{
		Format:     FormatVorbis,
		SampleRate: r.SampleRate(),
		Channels:   r.Channels(),
	}
	if n := r.Length(); n > 0 && info.SampleRate > 0 {
		info.Duration = time.Duration(n) * time.Second / time.Duration(info.SampleRate)
	}
	return info, nil
}
