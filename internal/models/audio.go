package models

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/eightd/eightd/internal/constants"
)

// AudioFile is a file the user picked or dropped, held in memory until submission.
type AudioFile struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// NewAudioFile builds an AudioFile, inferring the content type from the name
// when the caller does not provide one.
func NewAudioFile(name, contentType string, data []byte) *AudioFile {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = ContentTypeForName(name)
	}
	return &AudioFile{
		Name:        filepath.Base(name),
		ContentType: contentType,
		Data:        data,
	}
}

// Size returns the payload size in bytes.
func (f *AudioFile) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}

// ContentTypeForName guesses an audio MIME type from a file extension.
func ContentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg", ".oga":
		return "audio/ogg"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Parameters are the two knobs forwarded to the processing service.
type Parameters struct {
	PanningFrequency int `json:"panningFrequency"`
	Amplitude        int `json:"amplitude"`
}

// DefaultParameters returns the initial slider positions.
func DefaultParameters() Parameters {
	return Parameters{
		PanningFrequency: constants.DefaultPanningFrequency,
		Amplitude:        constants.DefaultAmplitude,
	}
}

// Clamped returns p with both fields forced into their bounds.
func (p Parameters) Clamped() Parameters {
	return Parameters{
		PanningFrequency: ClampPanningFrequency(p.PanningFrequency),
		Amplitude:        ClampAmplitude(p.Amplitude),
	}
}

// ClampPanningFrequency forces n into [PanningFrequencyMin, PanningFrequencyMax].
func ClampPanningFrequency(n int) int {
	return clamp(n, constants.PanningFrequencyMin, constants.PanningFrequencyMax)
}

// ClampAmplitude forces n into [AmplitudeMin, AmplitudeMax].
func ClampAmplitude(n int) int {
	return clamp(n, constants.AmplitudeMin, constants.AmplitudeMax)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
