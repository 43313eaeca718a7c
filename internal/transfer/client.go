// Package transfer sends one audio file plus its processing parameters to the
// remote service and returns whatever bytes come back.
package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/eightd/eightd/internal/config"
	"github.com/eightd/eightd/internal/constants"
	internalhttp "github.com/eightd/eightd/internal/http"
	"github.com/eightd/eightd/internal/logging"
	"github.com/eightd/eightd/internal/models"
	"github.com/eightd/eightd/internal/ratelimit"
	"github.com/eightd/eightd/internal/version"
)

// ErrTransferFailed is wrapped by every error Upload returns. Callers that only
// need to know "did it work" match on it with errors.Is.
var ErrTransferFailed = errors.New("transfer failed")

// ErrNoFile is returned when Upload is called without a file.
var ErrNoFile = errors.New("no file to upload")

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string // first bytes of the response body, for logs
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("service returned %s", e.Status)
	}
	return fmt.Sprintf("service returned %s: %s", e.Status, e.Body)
}

// Unwrap lets errors.Is(err, ErrTransferFailed) match status failures.
func (e *StatusError) Unwrap() error { return ErrTransferFailed }

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	// Endpoint is the full URL of the generate_audio call.
	Endpoint string

	// HTTPClient is the underlying client. Defaults to a fresh optimized client.
	HTTPClient *nethttp.Client

	// RetryMax is the number of extra attempts on connection errors and 5xx.
	// Zero means one attempt.
	RetryMax int

	// Limiter paces calls across every user of this Client. Optional.
	Limiter *ratelimit.RateLimiter

	Logger *logging.Logger
}

// Client uploads audio to the processing service. It holds no per-call state
// and is safe for concurrent use.
type Client struct {
	http     *retryablehttp.Client
	endpoint string
	limiter  *ratelimit.RateLimiter
	logger   *logging.Logger
}

// New creates a Client from explicit options.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("transfer: endpoint is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = internalhttp.CreateOptimizedClient(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
		}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand back the final response so status failures can be reported with their code
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		http:     retryClient,
		endpoint: opts.Endpoint,
		limiter:  opts.Limiter,
		logger:   logger,
	}, nil
}

// NewClient creates a Client for the service configured in cfg.
func NewClient(cfg *config.Config, limiter *ratelimit.RateLimiter, logger *logging.Logger) (*Client, error) {
	httpClient, err := internalhttp.CreateOptimizedClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	return New(Options{
		Endpoint:   cfg.GenerateAudioURL(),
		HTTPClient: httpClient,
		RetryMax:   cfg.RetryMax,
		Limiter:    limiter,
		Logger:     logger,
	})
}

// Endpoint returns the URL this client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Upload posts file and params to the service and returns the response body.
func (c *Client) Upload(ctx context.Context, file *models.AudioFile, params models.Parameters) ([]byte, error) {
	return c.UploadWithProgress(ctx, file, params, nil)
}

// UploadWithProgress is Upload with a callback reporting request body bytes
// sent. onProgress may be nil. It restarts from zero if an attempt is retried.
func (c *Client) UploadWithProgress(ctx context.Context, file *models.AudioFile, params models.Parameters, onProgress func(sent, total int64)) ([]byte, error) {
	if file == nil {
		return nil, ErrNoFile
	}

	body, contentType, err := encodeForm(file, params)
	if err != nil {
		return nil, fmt.Errorf("%w: encode form: %w", ErrTransferFailed, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	total := int64(len(body))
	reader := retryablehttp.ReaderFunc(func() (io.Reader, error) {
		return &progressReader{r: bytes.NewReader(body), total: total, onProgress: onProgress}, nil
	})

	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrTransferFailed, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", version.UserAgent())
	req.ContentLength = total

	start := time.Now()
	c.logger.Debug().
		Str("file", file.Name).
		Int64("bytes", file.Size()).
		Int("panning_frequency", params.PanningFrequency).
		Int("amplitude", params.Amplitude).
		Msg("Submitting audio to service")

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransferFailed, err)
	}

	c.logger.Debug().
		Str("file", file.Name).
		Int("result_bytes", len(payload)).
		Dur("elapsed", time.Since(start)).
		Msg("Service returned result")

	return payload, nil
}

// encodeForm builds the multipart body. The file part keeps the original
// filename and content type; the parameters go as decimal strings.
func encodeForm(file *models.AudioFile, params models.Parameters) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	contentType := file.ContentType
	if contentType == "" {
		contentType = models.ContentTypeForName(file.Name)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		constants.FormFieldFile, escapeQuotes(file.Name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}

	if err := w.WriteField(constants.FormFieldPanningFrequency, strconv.Itoa(params.PanningFrequency)); err != nil {
		return nil, "", err
	}
	if err := w.WriteField(constants.FormFieldAmplitude, strconv.Itoa(params.Amplitude)); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// progressReader reports bytes read through onProgress.
type progressReader struct {
	r          *bytes.Reader
	sent       int64
	total      int64
	onProgress func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.sent, p.total)
		}
	}
	return n, err
}

// Len lets retryablehttp compute Content-Length.
func (p *progressReader) Len() int {
	return p.r.Len()
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
