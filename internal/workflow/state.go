package workflow

import (
	"time"

	"github.com/eightd/eightd/internal/models"
	"github.com/eightd/eightd/internal/probe"
	"github.com/eightd/eightd/internal/result"
)

// Phase is the controller's current position in the upload lifecycle.
type Phase int

const (
	PhaseIdle       Phase = iota // waiting for input
	PhaseSubmitting              // one request in flight
	PhaseCompleted               // result held, awaiting download or dismissal
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseCompleted:
		return "completed"
	}
	return "unknown"
}

// NoticeKind distinguishes the two user-facing problems the workflow reports.
type NoticeKind int

const (
	// MissingInput means submit was requested with no file selected.
	MissingInput NoticeKind = iota + 1
	// TransferFailure means the service call failed, timed out or was cancelled.
	TransferFailure
)

func (k NoticeKind) String() string {
	switch k {
	case MissingInput:
		return "missing_input"
	case TransferFailure:
		return "transfer_failure"
	}
	return "none"
}

// Notice messages shown to the user.
const (
	MsgMissingInput   = "Please select a file to upload"
	MsgTransferFailed = "Processing failed. Please try again."
	MsgCancelled      = "Upload cancelled"
	MsgTimedOut       = "The processing service took too long to respond"
)

// Notice is a transient message attached to the controller.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
	Expires time.Time
}

// Active reports whether the notice should still be shown at now.
func (n *Notice) Active(now time.Time) bool {
	return n != nil && now.Before(n.Expires)
}

// SelectedFile describes the file currently held by the controller.
type SelectedFile struct {
	Name        string
	ContentType string
	Size        int64
	Info        *probe.Info // nil when the probe could not read the file
}

// Progress is the upload progress of the in-flight submission.
type Progress struct {
	Sent  int64
	Total int64
}

// Fraction returns Sent/Total in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Sent) / float64(p.Total)
}

// Snapshot is an immutable copy of controller state, safe to hand to views.
type Snapshot struct {
	SessionID string
	Phase     Phase
	File      *SelectedFile
	Params    models.Parameters
	Notice    *Notice
	Result    *result.Handle
	Progress  Progress
}

// Busy reports whether a submission is in flight.
func (s Snapshot) Busy() bool { return s.Phase == PhaseSubmitting }

// HasResult reports whether a result is waiting to be downloaded or dismissed.
func (s Snapshot) HasResult() bool { return s.Phase == PhaseCompleted && s.Result != nil }
