// Package workflow owns the state of one upload session: the selected file,
// the two processing parameters, the in-flight request and the held result.
//
// The controller is an explicit finite state machine:
//
//	Idle --Submit(file)--> Submitting --ok--> Completed --Dismiss--> Idle
//	                            |
//	                            +--error/cancel/timeout--> Idle (TransferFailure notice)
//
// Submit with no file stays in Idle and raises a MissingInput notice.
// Every mutation goes through the controller's methods (or Dispatch), which
// hold a mutex, so HTTP handlers and the upload goroutine can call in freely.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eightd/eightd/internal/constants"
	"github.com/eightd/eightd/internal/events"
	"github.com/eightd/eightd/internal/logging"
	"github.com/eightd/eightd/internal/models"
	"github.com/eightd/eightd/internal/probe"
	"github.com/eightd/eightd/internal/result"
)

var (
	ErrMissingInput  = errors.New("no file selected")
	ErrBusy          = errors.New("a submission is already in progress")
	ErrResultPending = errors.New("a result is waiting to be downloaded or dismissed")
	ErrCancelled     = errors.New("submission cancelled")
	ErrClosed        = errors.New("controller closed")
)

// Uploader is the transfer client contract the controller depends on.
type Uploader interface {
	Upload(ctx context.Context, file *models.AudioFile, params models.Parameters) ([]byte, error)
}

// ProgressUploader is implemented by uploaders that can report bytes sent.
type ProgressUploader interface {
	UploadWithProgress(ctx context.Context, file *models.AudioFile, params models.Parameters, onProgress func(sent, total int64)) ([]byte, error)
}

// Options configures a Controller.
type Options struct {
	SessionID string
	Uploader  Uploader
	Results   *result.Store
	Bus       *events.EventBus
	Logger    *logging.Logger

	// Timeout bounds a single submission. Zero uses the default.
	Timeout time.Duration

	// NoticeTTL and FailureNoticeTTL control how long notices stay visible.
	NoticeTTL        time.Duration
	FailureNoticeTTL time.Duration

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// Controller is the workflow state machine for one session.
type Controller struct {
	mu sync.Mutex

	id       string
	uploader Uploader
	results  *result.Store
	bus      *events.EventBus
	logger   *logging.Logger
	now      func() time.Time

	timeout          time.Duration
	noticeTTL        time.Duration
	failureNoticeTTL time.Duration

	phase    Phase
	file     *models.AudioFile
	fileInfo *probe.Info
	params   models.Parameters
	notice   *Notice
	handle   *result.Handle
	progress Progress

	// Per-submission bookkeeping. gen increments whenever a submission is
	// started or abandoned so a late completion can tell it is stale.
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// New creates a controller in Idle with default parameters.
func New(opts Options) *Controller {
	c := &Controller{
		id:               opts.SessionID,
		uploader:         opts.Uploader,
		results:          opts.Results,
		bus:              opts.Bus,
		logger:           opts.Logger,
		now:              opts.Now,
		timeout:          opts.Timeout,
		noticeTTL:        opts.NoticeTTL,
		failureNoticeTTL: opts.FailureNoticeTTL,
		phase:            PhaseIdle,
		params:           models.DefaultParameters(),
	}
	if c.results == nil {
		c.results = result.NewStore()
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.timeout <= 0 {
		c.timeout = constants.DefaultRequestTimeout
	}
	if c.noticeTTL <= 0 {
		c.noticeTTL = constants.NoticeTTL
	}
	if c.failureNoticeTTL <= 0 {
		c.failureNoticeTTL = constants.FailureNoticeTTL
	}
	return c
}

// ID returns the session ID this controller was created for.
func (c *Controller) ID() string { return c.id }

// SelectFile replaces the selected file. The last selection wins and any
// notice is cleared. A nil file clears the selection.
func (c *Controller) SelectFile(file *models.AudioFile) {
	var info *probe.Info
	if file != nil {
		var err error
		info, err = probe.Bytes(file.Data, file.Name)
		if err != nil {
			c.logger.Debug().Err(err).Str("file", file.Name).Msg("Could not read audio metadata")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = file
	c.fileInfo = info
	c.notice = nil
}

// RejectFile raises a MissingInput notice without changing the selection.
// Transports call it when a file never made it to the controller, e.g. it
// exceeded the upload limit.
func (c *Controller) RejectFile(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setNoticeLocked(MissingInput, msg, nil, c.noticeTTL)
}

// SetPanningFrequency sets the panning frequency, clamped to its bounds.
func (c *Controller) SetPanningFrequency(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.PanningFrequency = models.ClampPanningFrequency(n)
	return c.params.PanningFrequency
}

// SetAmplitude sets the amplitude, clamped to its bounds.
func (c *Controller) SetAmplitude(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.Amplitude = models.ClampAmplitude(n)
	return c.params.Amplitude
}

// submission is the state captured when Idle -> Submitting.
type submission struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	file   *models.AudioFile
	params models.Parameters
}

// begin validates and performs the Idle -> Submitting transition.
func (c *Controller) begin(parent context.Context) (*submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	switch c.phase {
	case PhaseSubmitting:
		return nil, ErrBusy
	case PhaseCompleted:
		return nil, ErrResultPending
	}

	if c.file == nil {
		c.setNoticeLocked(MissingInput, MsgMissingInput, nil, c.noticeTTL)
		return nil, ErrMissingInput
	}

	ctx, cancel := context.WithTimeout(parent, c.timeout)
	c.gen++
	sub := &submission{
		gen:    c.gen,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		file:   c.file,
		params: c.params,
	}
	c.cancel = cancel
	c.done = sub.done
	c.notice = nil
	c.progress = Progress{Total: sub.file.Size()}
	c.setPhaseLocked(PhaseSubmitting)
	return sub, nil
}

// run performs the transfer and the Submitting -> Completed/Idle transition.
func (c *Controller) run(sub *submission) error {
	defer close(sub.done)
	defer sub.cancel()

	c.logger.Info().
		Str("session", c.id).
		Str("file", sub.file.Name).
		Int("panning_frequency", sub.params.PanningFrequency).
		Int("amplitude", sub.params.Amplitude).
		Msg("Submitting audio")

	payload, err := c.upload(sub)

	c.mu.Lock()
	defer c.mu.Unlock()

	if sub.gen != c.gen || c.phase != PhaseSubmitting {
		// Cancelled or closed while the request was in flight; the payload is discarded
		return ErrCancelled
	}
	c.cancel = nil

	if err != nil {
		msg := MsgTransferFailed
		if errors.Is(err, context.DeadlineExceeded) {
			msg = MsgTimedOut
		}
		c.logger.Error().Err(err).Str("session", c.id).Str("file", sub.file.Name).Msg("Transfer failed")
		c.setNoticeLocked(TransferFailure, msg, err, c.failureNoticeTTL)
		c.setPhaseLocked(PhaseIdle)
		return err
	}

	c.handle = c.results.Acquire(payload, constants.ResultFilename)
	c.bus.PublishResult(events.EventResultReady, c.id, c.handle.ID, c.handle.Size())
	// A file picked while the request was in flight is kept
	if c.file == sub.file {
		c.file = nil
		c.fileInfo = nil
	}
	c.setPhaseLocked(PhaseCompleted)
	return nil
}

func (c *Controller) upload(sub *submission) ([]byte, error) {
	if c.uploader == nil {
		return nil, errors.New("no uploader configured")
	}
	pu, ok := c.uploader.(ProgressUploader)
	if !ok {
		return c.uploader.Upload(sub.ctx, sub.file, sub.params)
	}
	return pu.UploadWithProgress(sub.ctx, sub.file, sub.params, func(sent, total int64) {
		c.mu.Lock()
		if sub.gen == c.gen {
			c.progress = Progress{Sent: sent, Total: total}
		}
		c.mu.Unlock()
		c.bus.PublishTransferProgress(c.id, sub.file.Name, sent, total)
	})
}

// Submit sends the selected file and blocks until the controller leaves Submitting.
// It returns ErrMissingInput without any network call when no file is selected.
func (c *Controller) Submit(ctx context.Context) error {
	sub, err := c.begin(ctx)
	if err != nil {
		return err
	}
	return c.run(sub)
}

// Start is Submit without waiting: it returns once the controller is in
// Submitting (or with the same errors Submit reports before any network call).
// The upload runs under parent, not under the caller's request context.
func (c *Controller) Start(parent context.Context) error {
	sub, err := c.begin(parent)
	if err != nil {
		return err
	}
	go c.run(sub)
	return nil
}

// Wait blocks until no submission is in flight or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel abandons the in-flight submission and returns to Idle with a
// TransferFailure notice. The selected file is kept so the user can retry.
// It reports whether anything was cancelled.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseSubmitting {
		return false
	}
	c.abandonLocked()
	c.setNoticeLocked(TransferFailure, MsgCancelled, ErrCancelled, c.failureNoticeTTL)
	c.setPhaseLocked(PhaseIdle)
	return true
}

func (c *Controller) abandonLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.progress = Progress{}
}

// DismissResult releases the held result and returns to Idle. It reports
// whether a result was released; calling it again is a no-op.
func (c *Controller) DismissResult() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseCompleted {
		return false
	}
	c.releaseLocked()
	c.setPhaseLocked(PhaseIdle)
	return true
}

func (c *Controller) releaseLocked() {
	if c.handle == nil {
		return
	}
	if c.results.Release(c.handle.ID) {
		c.bus.PublishResult(events.EventResultReleased, c.id, c.handle.ID, c.handle.Size())
	}
	c.handle = nil
}

// Close cancels any in-flight submission and releases any held result.
// The controller rejects further submissions afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.phase == PhaseSubmitting {
		c.abandonLocked()
	}
	c.releaseLocked()
	c.file = nil
	c.fileInfo = nil
	c.setPhaseLocked(PhaseIdle)
}

// Snapshot returns a copy of the current state. Expired notices are omitted.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SessionID: c.id,
		Phase:     c.phase,
		Params:    c.params,
		Progress:  c.progress,
	}
	if c.file != nil {
		snap.File = &SelectedFile{
			Name:        c.file.Name,
			ContentType: c.file.ContentType,
			Size:        c.file.Size(),
			Info:        c.fileInfo,
		}
	}
	if c.notice.Active(c.now()) {
		n := *c.notice
		snap.Notice = &n
	}
	if c.phase == PhaseCompleted {
		snap.Result = c.handle
	}
	return snap
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) setPhaseLocked(p Phase) {
	if c.phase == p {
		return
	}
	old := c.phase
	c.phase = p
	var name string
	if c.file != nil {
		name = c.file.Name
	}
	c.bus.PublishPhaseChange(c.id, old.String(), p.String(), name)
}

func (c *Controller) setNoticeLocked(kind NoticeKind, msg string, err error, ttl time.Duration) {
	c.notice = &Notice{
		Kind:    kind,
		Message: msg,
		Err:     err,
		Expires: c.now().Add(ttl),
	}
	c.bus.PublishNotice(c.id, kind.String(), msg, err)
}
