package constants

import (
	"time"
)

// Processing parameters accepted by the remote 8D service
const (
	// PanningFrequencyMin / PanningFrequencyMax bound the panning slider
	PanningFrequencyMin = 1
	PanningFrequencyMax = 15

	// DefaultPanningFrequency - initial slider position
	DefaultPanningFrequency = 8

	// AmplitudeMin / AmplitudeMax bound the amplitude slider
	AmplitudeMin = 1
	AmplitudeMax = 10

	// DefaultAmplitude - initial slider position
	DefaultAmplitude = 2
)

// Remote service
const (
	// DefaultServiceURL - base URL of the processing service
	DefaultServiceURL = "http://localhost:8080"

	// GenerateAudioPath - endpoint that accepts the multipart upload
	GenerateAudioPath = "/generate_audio"

	// Multipart form field names
	FormFieldFile             = "file"
	FormFieldPanningFrequency = "panning_frequency"
	FormFieldAmplitude        = "amplitude"

	// DefaultRequestTimeout - upper bound for one submission (upload + processing + response)
	DefaultRequestTimeout = 2 * time.Minute

	// DefaultRetryMax - the service call is single-attempt unless configured otherwise
	DefaultRetryMax = 0

	// RetryWaitMin / RetryWaitMax bound retryablehttp backoff when retries are enabled
	RetryWaitMin = 1 * time.Second
	RetryWaitMax = 30 * time.Second

	// SubmissionRatePerSec / SubmissionBurstCapacity pace calls to the service across all sessions
	SubmissionRatePerSec    = 0.5
	SubmissionBurstCapacity = 4
)

// Result artifact
const (
	// ResultFilename - name offered to the browser for the processed file
	ResultFilename = "8d_audio.mp3"

	// ResultContentType - content type used when serving the opaque payload
	ResultContentType = "audio/mpeg"

	// OutputPrefix - prefix for files written by the headless process command
	OutputPrefix = "8d_"

	// DefaultProcessConcurrency - files converted at once by the process command
	DefaultProcessConcurrency = 2
)

// Web UI
const (
	// DefaultListenAddr - address the UI server binds to
	DefaultListenAddr = "127.0.0.1:3000"

	// DefaultMaxUploadMB - largest file the drop-zone accepts (matches the "MP3 (15MB Max)" hint)
	DefaultMaxUploadMB = 15

	// DefaultSessionTTL - idle time before a browser session and its held result are dropped
	DefaultSessionTTL = 30 * time.Minute

	// SessionCookieName - gorilla/sessions cookie carrying the session ID
	SessionCookieName = "eightd_session"

	// NoticeTTL - how long the missing-input notice stays visible
	NoticeTTL = 2 * time.Second

	// FailureNoticeTTL - how long a transfer failure notice stays visible
	FailureNoticeTTL = 10 * time.Second

	// BusyRefreshSeconds - page refresh interval while a submission is in flight
	BusyRefreshSeconds = 1

	// ServerReadHeaderTimeout / ServerShutdownTimeout for the UI http.Server
	ServerReadHeaderTimeout = 10 * time.Second
	ServerShutdownTimeout   = 10 * time.Second
)

// Event bus sizing
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - maximum buffer size
	EventBusMaxBuffer = 4096
)

// Disk space safety margin
const (
	// DiskSpaceSafetyMargin - multiplier applied to payload size before writing results
	DiskSpaceSafetyMargin = 1.1
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// ProxyWarmupTimeout - budget for the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)
