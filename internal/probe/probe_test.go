package probe

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV encodes one second of 16-bit silence.
func writeTestWAV(t *testing.T, sampleRate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, sampleRate*channels),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func TestFile_WAV(t *testing.T) {
	path := writeTestWAV(t, 22050, 2)

	info, err := File(path)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if info.Format != FormatWAV {
		t.Errorf("Format = %q, want %q", info.Format, FormatWAV)
	}
	if info.SampleRate != 22050 || info.Channels != 2 || info.BitDepth != 16 {
		t.Errorf("unexpected info %+v", info)
	}
	if diff := info.Duration - time.Second; diff < -50*time.Millisecond || diff > 50*time.Millisecond {
		t.Errorf("Duration = %v, want ~1s", info.Duration)
	}
	if s := info.String(); !strings.Contains(s, "22050 Hz") || !strings.Contains(s, "16-bit") {
		t.Errorf("String() = %q", s)
	}
}

func TestBytes_Empty(t *testing.T) {
	if _, err := Bytes(nil, "x.mp3"); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestBytes_UnknownFormat(t *testing.T) {
	if _, err := Bytes([]byte("test-data"), "notes.txt"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestBytes_GarbageWithAudioExtension(t *testing.T) {
	for _, name := range []string{"test.mp3", "test.ogg", "test.wav"} {
		if _, err := Bytes([]byte("definitely not audio"), name); err == nil {
			t.Errorf("%s: expected error for garbage content", name)
		}
	}
}

// truncatedOgg has a page signature and nothing behind it; the vorbis
// decoder indexes past the end of it.
func truncatedOgg() []byte {
	return append([]byte("OggS"), make([]byte, 60)...)
}

func TestBytes_CorruptStreamRecovered(t *testing.T) {
	info, err := Bytes(truncatedOgg(), "broken.ogg")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if info != nil {
		t.Errorf("expected no info, got %+v", info)
	}
	if !strings.HasPrefix(err.Error(), FormatVorbis+":") {
		t.Errorf("error should name the format: %v", err)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		file string
		want string
	}{
		{"riff wave", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), "a.bin", FormatWAV},
		{"ogg", []byte("OggS\x00\x02"), "a.bin", FormatVorbis},
		{"id3", []byte("ID3\x04\x00"), "a.bin", FormatMP3},
		{"mpeg sync", []byte{0xFF, 0xFB, 0x90, 0x00}, "a.bin", FormatMP3},
		{"extension fallback", []byte("????"), "song.MP3", FormatMP3},
		{"unknown", []byte("????"), "song.flac", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detect(tt.data, tt.file); got != tt.want {
				t.Errorf("detect() = %q, want %q", got, tt.want)
			}
		})
	}
}
